package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"

	"github.com/bozorlik/miniapp-backend/internal/catalog"
	"github.com/bozorlik/miniapp-backend/internal/coordinator"
	"github.com/bozorlik/miniapp-backend/internal/database"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
	"github.com/bozorlik/miniapp-backend/internal/health"
	"github.com/bozorlik/miniapp-backend/internal/i18n"
	"github.com/bozorlik/miniapp-backend/internal/idempotency"
	"github.com/bozorlik/miniapp-backend/internal/jobs"
	"github.com/bozorlik/miniapp-backend/internal/jobs/handlers"
	"github.com/bozorlik/miniapp-backend/internal/lifecycle"
	"github.com/bozorlik/miniapp-backend/internal/listcache"
	"github.com/bozorlik/miniapp-backend/internal/notify"
	"github.com/bozorlik/miniapp-backend/internal/ratelimit"
	"github.com/bozorlik/miniapp-backend/internal/repository"
	"github.com/bozorlik/miniapp-backend/internal/resolver"
	"github.com/bozorlik/miniapp-backend/internal/server"
	"github.com/bozorlik/miniapp-backend/internal/sharing"
	"github.com/bozorlik/miniapp-backend/internal/userdir"
	"github.com/bozorlik/miniapp-backend/pkg/config"
	"github.com/bozorlik/miniapp-backend/pkg/graceful"
	"github.com/bozorlik/miniapp-backend/pkg/logger"
	"github.com/bozorlik/miniapp-backend/pkg/metrics"
	redisclient "github.com/bozorlik/miniapp-backend/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.AppEnv,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(cfg.Logger, cfg.Sentry.Enabled)
	slog.SetDefault(log)

	log.Info("starting mini-app backend",
		slog.String("env", cfg.AppEnv),
		slog.String("addr", cfg.Server.Addr()))

	translations, err := i18n.Load("ru")
	if err != nil {
		log.Error("failed to load translations", slog.Any("error", err))
		os.Exit(1)
	}

	cat := catalog.New(log)
	if err := cat.Load(ctx, cfg.Catalog.Path); err != nil {
		log.Error("failed to load price catalog", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.SetCatalogEntries(cat.Size())
	log.Info("price catalog loaded", slog.Int("entries", cat.Size()))

	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log)
	checker.AddCheck("catalog", health.NewCatalogChecker(cat))

	var db *sql.DB
	var userRepo repository.UserRepository
	var listRepo repository.ListRepository
	var tokenStore sharing.Store

	gen := sharing.RandomTokenGenerator{}

	if cfg.Postgres.Enabled() {
		db, err = sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			log.Error("failed to open database", slog.Any("error", err))
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping database", slog.Any("error", err))
			os.Exit(1)
		}

		migrator := database.NewMigrator(db, log)
		if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
			log.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}

		userRepo = repository.NewUserRepository(db, log)
		listRepo = repository.NewListRepository(db, log)
		tokenStore = sharing.NewPostgresStore(db, gen, log, cfg.Share.TokenTTL)
		checker.AddCheck("postgres", health.NewDBChecker(db))
		shutdown.Register("postgres", func(context.Context) error { return db.Close() })
	} else {
		log.Warn("postgres is not configured, using in-memory storage")
		userRepo = repository.NewMemoryUserRepository()
		listRepo = repository.NewMemoryListRepository()
		tokenStore = sharing.NewMemoryStore(gen, cfg.Share.TokenTTL)
	}

	var (
		idem    *idempotency.Manager
		cache   *listcache.Cache
		limiter ratelimit.Limiter
	)

	if cfg.Redis.Enabled() {
		rds, err := redisclient.New(ctx, redisclient.DefaultConfig(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}

		idem = idempotency.NewManager(idempotency.NewRedisStore(rds.Client, log), log)
		cache = listcache.NewCache(redisclient.NewMetricsClient(rds), 15*time.Minute)
		limiter = ratelimit.NewAdaptiveLimiter(
			ratelimit.NewRedisLimiter(rds.Client, log),
			ratelimit.NewMemoryLimiter(log),
			log,
		)

		checker.AddCheck("redis", health.NewRedisChecker(rds.Client))
		shutdown.Register("redis", func(context.Context) error { return rds.Close() })

		cleaner := ratelimit.NewCleaner(rds.Client, log, cfg.RateLimit.CleanerInterval)
		go cleaner.Run(ctx)

		startCatalogJobs(cfg, cat, log, shutdown)
	} else {
		log.Warn("redis is not configured, share replay and rate limiting degrade to in-memory")
		limiter = ratelimit.NewMemoryLimiter(log)
	}

	directory := userdir.New(userRepo, log)
	res := resolver.New(cat, log)

	hub := notify.NewHub(log)
	go hub.Run(ctx)

	coord := coordinator.New(
		coordinator.Config{
			BotUsername: cfg.Share.BotUsername,
			IssueTTL:    cfg.Share.IssueTTL,
		},
		tokenStore,
		listRepo,
		directory,
		idem,
		cache,
		hub,
		log,
	)

	errHandler := apperrors.NewHandler(log, translations.Translate, cfg.Sentry.Enabled)
	probes := lifecycle.NewProbes(log, checker.Healthy)

	srv := server.New(server.Deps{
		Log:       log,
		Resolver:  res,
		Coord:     coord,
		Catalog:   cat,
		Directory: directory,
		Hub:       hub,
		Checker:   checker,
		Probes:    probes,
		Errors:    errHandler,
		Rules:     ratelimit.NewRules(cfg.RateLimit),
		Limiter:   limiter,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := graceful.NewServer(log, httpServer, cfg.Server.ShutdownTimeout).ListenAndServe(ctx); err != nil {
		log.Error("http server stopped with error", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("mini-app backend stopped")
}

// startCatalogJobs wires the asynq scheduler and worker that periodically
// reload the price catalog. Requires Redis.
func startCatalogJobs(cfg *config.Config, cat *catalog.Catalog, log *slog.Logger, shutdown *lifecycle.Shutdown) {
	if cfg.Catalog.RefreshInterval <= 0 {
		return
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, map[string]int{
		jobs.QueueCritical: 6,
		jobs.QueueDefault:  3,
		jobs.QueueLow:      1,
	}, log)
	worker.RegisterHandler(jobs.TaskTypeCatalogRefresh, handlers.NewCatalogRefreshHandler(cat, log))

	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, log)
	if err := scheduler.RegisterTasks(cfg.Catalog.Path, cfg.Catalog.RefreshInterval); err != nil {
		log.Error("failed to register scheduled tasks", slog.Any("error", err))
		return
	}
	scheduler.Run()

	queue := jobs.NewManager(redisOpt, log)

	// Kick off one refresh immediately so a restarted instance picks up a
	// changed price file without waiting a full interval.
	task, err := jobs.NewCatalogRefreshTask(cfg.Catalog.Path)
	if err != nil {
		log.Error("failed to build catalog refresh task", slog.Any("error", err))
	} else if _, err := queue.Enqueue(context.Background(), task); err != nil {
		log.Error("failed to enqueue catalog refresh", slog.Any("error", err))
	}

	shutdown.Register("jobs", func(context.Context) error {
		scheduler.Shutdown()
		worker.Shutdown()
		return queue.Close()
	})
}
