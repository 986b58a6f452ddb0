package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/bozorlik/miniapp-backend/internal/jobs"
	"github.com/bozorlik/miniapp-backend/pkg/metrics"
)

// Reloader reloads the price catalog from disk and reports its size.
type Reloader interface {
	Load(ctx context.Context, path string) error
	Size() int
}

type CatalogRefreshHandler struct {
	catalog Reloader
	log     *slog.Logger
}

func NewCatalogRefreshHandler(catalog Reloader, log *slog.Logger) *CatalogRefreshHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CatalogRefreshHandler{catalog: catalog, log: log}
}

func (h *CatalogRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.CatalogRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "catalog refresh: failed to decode payload",
			slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		return err
	}

	if err := h.catalog.Load(ctx, payload.Path); err != nil {
		// Previous snapshot stays active on failure.
		h.log.ErrorContext(ctx, "catalog refresh failed",
			slog.String("path", payload.Path), slog.Any("error", err))
		return err
	}

	size := h.catalog.Size()
	metrics.SetCatalogEntries(size)

	h.log.InfoContext(ctx, "catalog refreshed",
		slog.String("path", payload.Path), slog.Int("entries", size))

	return nil
}
