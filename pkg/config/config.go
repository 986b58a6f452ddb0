package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the mini-app backend.
type Config struct {
	AppEnv    string          `mapstructure:"-"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Catalog   CatalogConfig   `mapstructure:"catalog" validate:"required"`
	Share     ShareConfig     `mapstructure:"share"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the host:port pair the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig describes the PostgreSQL connection. An empty Host disables
// the database and switches storage to in-memory implementations.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Enabled reports whether a database host is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// DSN returns the PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, sslMode,
	)
}

// RedisConfig describes the Redis connection. An empty Addr disables Redis;
// caching and idempotency degrade gracefully without it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level  string        `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string        `mapstructure:"format" validate:"omitempty,oneof=text json"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig controls rotated file output in addition to stdout.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig controls error reporting.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// CatalogConfig describes the price catalog source.
type CatalogConfig struct {
	Path            string        `mapstructure:"path" validate:"required"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ShareConfig describes list sharing behaviour.
type ShareConfig struct {
	// BotUsername is used to build t.me deep links. Empty means relative
	// /shared/{token} URLs.
	BotUsername string `mapstructure:"bot_username"`
	// TokenTTL bounds how long an issued token stays redeemable. Zero means
	// tokens never expire.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// IssueTTL is the replay window during which repeated share requests for
	// the same list return the already issued token. Zero disables replay.
	IssueTTL time.Duration `mapstructure:"issue_ttl"`
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	Enabled   bool               `mapstructure:"enabled"`
	Whitelist []int64            `mapstructure:"whitelist"`
	PerUser   RateLimitRule      `mapstructure:"per_user"`
	Endpoints RateLimitEndpoints `mapstructure:"endpoints"`
	// CleanerInterval is how often stale limiter keys are scanned away.
	CleanerInterval time.Duration `mapstructure:"cleaner_interval"`
}

// RateLimitEndpoints holds per-operation limits.
type RateLimitEndpoints struct {
	Share   RateLimitRule `mapstructure:"share"`
	Redeem  RateLimitRule `mapstructure:"redeem"`
	Resolve RateLimitRule `mapstructure:"resolve"`
}

// RateLimitRule is a single limit over a parseable window, e.g. {10, "1m"}.
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}
