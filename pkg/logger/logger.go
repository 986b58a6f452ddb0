// Package logger assembles the application slog pipeline: stdout, optional
// rotated files, optional Sentry forwarding, with sensitive-field masking.
package logger

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/bozorlik/miniapp-backend/pkg/config"

	slogsentry "github.com/samber/slog-sentry/v2"
)

// New builds the root *slog.Logger from configuration.
func New(cfg config.LoggerConfig, sentryEnabled bool) *slog.Logger {
	level := parseLevel(cfg.Level)

	out := io.Writer(os.Stdout)
	if cfg.File.Enabled && cfg.File.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if cfg.Format == "json" {
		base = slog.NewJSONHandler(out, opts)
	} else {
		base = slog.NewTextHandler(out, opts)
	}

	handlers := []slog.Handler{base}
	if sentryEnabled {
		handlers = append(handlers, slogsentry.Option{
			Level: slog.LevelError,
		}.NewSentryHandler())
	}

	return slog.New(NewMaskingHandler(slogmulti.Fanout(handlers...)))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
