package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bozorlik/miniapp-backend/internal/domain"
	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
	"github.com/bozorlik/miniapp-backend/pkg/metrics"
)

type identityPayload struct {
	ID        int64  `json:"id" validate:"required"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Language  string `json:"language"`
}

func (p identityPayload) toIdentity() domain.Identity {
	return domain.Identity{
		ID:        p.ID,
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Language:  p.Language,
	}
}

type resolveRequest struct {
	User  identityPayload `json:"user" validate:"required"`
	Items []string        `json:"items" validate:"max=200,dive,max=1000"`
}

type shareRequest struct {
	User identityPayload      `json:"user" validate:"required"`
	List *domain.ShoppingList `json:"list" validate:"required"`
}

type shareResponse struct {
	Token    string `json:"token"`
	DeepLink string `json:"deep_link"`
	Replayed bool   `json:"replayed"`
}

type redeemRequest struct {
	User identityPayload `json:"user" validate:"required"`
}

type searchResponse struct {
	Results []*domain.CatalogEntry `json:"results"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.checkLimit(r, "resolve", req.User.ID); err != nil {
		s.respondError(w, r, req.User.Language, err)
		return
	}

	if s.directory != nil {
		if _, err := s.directory.Upsert(r.Context(), req.User.toIdentity()); err != nil {
			s.log.Warn("resolve: user upsert failed", slog.Int64("user_id", req.User.ID), slog.Any("error", err))
		}
	}

	list, err := s.resolver.Resolve(r.Context(), req.User.ID, req.Items)
	if err != nil {
		s.respondError(w, r, req.User.Language, err)
		return
	}

	resolved, unresolved := 0, 0
	for _, item := range list.Items {
		if item.Resolved {
			resolved++
		} else {
			unresolved++
		}
	}
	metrics.RecordResolvedItems(resolved, unresolved)

	respondWithJSON(s.log, w, http.StatusOK, list)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.checkLimit(r, "share", req.User.ID); err != nil {
		s.respondError(w, r, req.User.Language, err)
		return
	}

	result, err := s.coord.Share(r.Context(), req.List, req.User.toIdentity())
	if err != nil {
		s.respondError(w, r, req.User.Language, err)
		return
	}

	respondWithJSON(s.log, w, http.StatusCreated, shareResponse{
		Token:    result.Token.Token,
		DeepLink: result.DeepLink,
		Replayed: result.Replayed,
	})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req redeemRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.checkLimit(r, "redeem", req.User.ID); err != nil {
		s.respondError(w, r, req.User.Language, err)
		return
	}

	list, err := s.coord.Redeem(r.Context(), token, req.User.toIdentity())
	if err != nil {
		s.respondError(w, r, req.User.Language, err)
		return
	}

	respondWithJSON(s.log, w, http.StatusOK, list)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	lang := r.URL.Query().Get("lang")

	list, err := s.coord.Preview(r.Context(), token)
	if err != nil {
		s.respondError(w, r, lang, err)
		return
	}

	respondWithJSON(s.log, w, http.StatusOK, list)
}

func (s *Server) handlePriceSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, r, r.URL.Query().Get("lang"), apperrors.NewValidationError("query parameter q is required"))
		return
	}

	const maxResults = 10
	results := s.catalog.Search(query, maxResults)
	if results == nil {
		results = []*domain.CatalogEntry{}
	}

	respondWithJSON(s.log, w, http.StatusOK, searchResponse{Results: results})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondWithError(s.log, w, http.StatusNotFound, "live updates are not enabled")
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID == 0 {
		respondWithError(s.log, w, http.StatusBadRequest, "invalid user id")
		return
	}

	s.hub.ServeWS(w, r, userID)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		respondWithJSON(s.log, w, http.StatusOK, map[string]string{"status": "OK"})
		return
	}

	results := s.checker.Check(r.Context())

	status := http.StatusOK
	for _, state := range results {
		if state != "OK" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	respondWithJSON(s.log, w, status, results)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.probes == nil {
		respondWithJSON(s.log, w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	if err := s.probes.Readiness(r.Context()); err != nil {
		respondWithError(s.log, w, http.StatusServiceUnavailable, err.Error())
		return
	}

	respondWithJSON(s.log, w, http.StatusOK, map[string]string{"status": "ready"})
}

// decode parses and validates the JSON request body. It writes the error
// response itself and reports whether the handler should proceed.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		respondWithError(s.log, w, http.StatusBadRequest, "invalid request payload")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		respondWithError(s.log, w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}

	return true
}
