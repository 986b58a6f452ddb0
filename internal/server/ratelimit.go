package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/bozorlik/miniapp-backend/internal/errors"
)

// checkLimit enforces the per-operation and per-user limits once the caller's
// identity is known. Whitelisted users and misconfigured rules pass through.
func (s *Server) checkLimit(r *http.Request, operation string, userID int64) error {
	if s.rules == nil || s.limiter == nil || !s.rules.Enabled() {
		return nil
	}

	if s.rules.IsWhitelisted(userID) {
		return nil
	}

	if limit, window, err := s.rules.GetEndpointLimit(operation); err != nil {
		s.log.Warn("rate limit rule unavailable", slog.String("operation", operation), slog.Any("error", err))
	} else if !s.allow(r, fmt.Sprintf("%s:%d", operation, userID), limit, window) {
		return apperrors.NewRateLimitError(operation)
	}

	// The per-user rule caps a single user's traffic across all operations.
	if limit, window, err := s.rules.GetPerUserLimit(); err == nil {
		if !s.allow(r, fmt.Sprintf("user:%d", userID), limit, window) {
			return apperrors.NewRateLimitError(operation)
		}
	}

	return nil
}

func (s *Server) allow(r *http.Request, key string, limit int, window time.Duration) bool {
	result, err := s.limiter.Check(r.Context(), key, limit, window)
	if err != nil && result == nil {
		// Limiter backend failure never blocks traffic.
		s.log.Warn("rate limiter check failed", slog.String("key", key), slog.Any("error", err))
		return true
	}

	return result == nil || result.Allowed
}
