// Package server exposes the HTTP API consumed by the Telegram Mini App.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bozorlik/miniapp-backend/internal/catalog"
	"github.com/bozorlik/miniapp-backend/internal/coordinator"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
	"github.com/bozorlik/miniapp-backend/internal/health"
	"github.com/bozorlik/miniapp-backend/internal/lifecycle"
	"github.com/bozorlik/miniapp-backend/internal/notify"
	"github.com/bozorlik/miniapp-backend/internal/ratelimit"
	"github.com/bozorlik/miniapp-backend/internal/resolver"
	"github.com/bozorlik/miniapp-backend/internal/userdir"
	"github.com/bozorlik/miniapp-backend/pkg/logger"
)

// Server wires the core services into HTTP handlers.
type Server struct {
	log       *slog.Logger
	resolver  *resolver.Resolver
	coord     *coordinator.Coordinator
	catalog   *catalog.Catalog
	directory *userdir.Directory
	hub       *notify.Hub
	checker   *health.Checker
	probes    lifecycle.HealthChecker
	errs      *apperrors.Handler
	rules     *ratelimit.Rules
	limiter   ratelimit.Limiter
	validate  *validator.Validate
}

// Deps lists the collaborators the server needs. Hub, checker, probes, rules
// and limiter are optional; the corresponding features degrade gracefully.
type Deps struct {
	Log       *slog.Logger
	Resolver  *resolver.Resolver
	Coord     *coordinator.Coordinator
	Catalog   *catalog.Catalog
	Directory *userdir.Directory
	Hub       *notify.Hub
	Checker   *health.Checker
	Probes    lifecycle.HealthChecker
	Errors    *apperrors.Handler
	Rules     *ratelimit.Rules
	Limiter   ratelimit.Limiter
}

// New constructs the Server.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		log:       log,
		resolver:  deps.Resolver,
		coord:     deps.Coord,
		catalog:   deps.Catalog,
		directory: deps.Directory,
		hub:       deps.Hub,
		checker:   deps.Checker,
		probes:    deps.Probes,
		errs:      deps.Errors,
		rules:     deps.Rules,
		limiter:   deps.Limiter,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router assembles the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(logger.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Post("/lists/resolve", s.handleResolve)
		r.Post("/share", s.handleShare)
		r.Get("/share/{token}", s.handlePreview)
		r.Post("/share/{token}/redeem", s.handleRedeem)
		r.Get("/prices/search", s.handlePriceSearch)
	})

	r.Get("/ws/{user_id}", s.handleWS)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
