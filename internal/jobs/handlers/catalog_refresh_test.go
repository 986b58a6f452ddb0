package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bozorlik/miniapp-backend/internal/jobs"
)

type fakeReloader struct {
	loaded []string
	size   int
	err    error
}

func (f *fakeReloader) Load(_ context.Context, path string) error {
	if f.err != nil {
		return f.err
	}
	f.loaded = append(f.loaded, path)
	return nil
}

func (f *fakeReloader) Size() int { return f.size }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCatalogRefreshHandler_ProcessTask(t *testing.T) {
	reloader := &fakeReloader{size: 42}
	handler := NewCatalogRefreshHandler(reloader, testLogger())

	task, err := jobs.NewCatalogRefreshTask("data/prices.json")
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"data/prices.json"}, reloader.loaded)
}

func TestCatalogRefreshHandler_LoadFailurePropagates(t *testing.T) {
	reloader := &fakeReloader{err: errors.New("file missing")}
	handler := NewCatalogRefreshHandler(reloader, testLogger())

	task, err := jobs.NewCatalogRefreshTask("data/prices.json")
	require.NoError(t, err)

	assert.Error(t, handler.ProcessTask(context.Background(), task))
}

func TestCatalogRefreshHandler_RejectsMalformedPayload(t *testing.T) {
	handler := NewCatalogRefreshHandler(&fakeReloader{}, testLogger())

	task := asynq.NewTask(jobs.TaskTypeCatalogRefresh, []byte("{"))
	assert.Error(t, handler.ProcessTask(context.Background(), task))
}
