package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bozorlik/miniapp-backend/pkg/config"
)

func TestNew_BuildsPipeline(t *testing.T) {
	log := New(config.LoggerConfig{Level: "debug", Format: "json"}, false)
	require.NotNil(t, log)
	assert.True(t, log.Enabled(t.Context(), slog.LevelDebug))

	// With Sentry forwarding enabled the fan-out still produces a usable
	// logger even when no Sentry client has been initialised.
	withSentry := New(config.LoggerConfig{Level: "error", Format: "text"}, true)
	require.NotNil(t, withSentry)
	assert.False(t, withSentry.Enabled(t.Context(), slog.LevelInfo))
	withSentry.Error("downstream unavailable")
}

func TestMaskingHandler_HidesSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	log.Info("issued",
		slog.String("share_token", "tok_secret_value"),
		slog.String("user", "507"),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "***", record["share_token"])
	assert.Equal(t, "507", record["user"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything-else"))
}
