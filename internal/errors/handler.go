package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/bozorlik/miniapp-backend/pkg/logger"
	"github.com/bozorlik/miniapp-backend/pkg/metrics"
)

// Translate resolves a message key to a user-facing string in lang.
type Translate func(lang, key string) string

// Handler logs application errors, forwards severe ones to Sentry, and
// produces the localized message shown to the Mini App user.
type Handler struct {
	log           *slog.Logger
	translate     Translate
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, translate Translate, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		translate:     translate,
		sentryEnabled: sentryEnabled,
	}
}

// Handle reports err and returns the user message plus whether the caller may retry.
func (h *Handler) Handle(ctx context.Context, lang string, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs := []slog.Attr{
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
			slog.Bool("retryable", appErr.Retryable),
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}

		log.LogAttrs(ctx, slog.LevelError, "application error", attrs...)
		metrics.RecordError(appErr.Code, string(appErr.Severity))

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(err)
		}

		return h.message(lang, appErr.MessageKey), appErr.Retryable
	}

	attrs := []slog.Attr{
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
		slog.Bool("retryable", false),
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	log.LogAttrs(ctx, slog.LevelError, "unknown error", attrs...)
	metrics.RecordError("unknown", string(SeverityHigh))

	if h.sentryEnabled {
		h.sendToSentry(err)
	}

	return h.message(lang, "errors.internal"), false
}

func (h *Handler) message(lang, key string) string {
	if h.translate == nil || key == "" {
		return key
	}

	return h.translate(lang, key)
}

func (h *Handler) sendToSentry(err error) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		sentry.CaptureException(err)
	})
}
