package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
)

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// respondError maps an application error to an HTTP status and a localized
// message, logging it through the shared error handler along the way.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, lang string, err error) {
	message := err.Error()
	retryable := false
	if s.errs != nil {
		message, retryable = s.errs.Handle(r.Context(), lang, err)
	}

	respondWithJSON(s.log, w, statusFor(err), errorResponse{
		Error:     message,
		Retryable: retryable,
	})
}

func statusFor(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsRateLimited(err):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(log *slog.Logger, w http.ResponseWriter, code int, message string) {
	respondWithJSON(log, w, code, map[string]string{"error": message})
}

func respondWithJSON(log *slog.Logger, w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		if log != nil {
			log.Error("failed to marshal response", slog.Any("error", err))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil && log != nil {
		log.Error("failed to write response", slog.Any("error", err))
	}
}
