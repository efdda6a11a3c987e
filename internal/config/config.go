package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Global singleton so background jobs can observe reloaded values.
var globalConfig *Config

// Config holds all environment backed configuration for chat-api.
type Config struct {
	// HTTP Server
	HTTPPort       int      `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort    int      `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL    string   `env:"DATABASE_URL,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost,http://localhost:3000,http://localhost:8080"`

	// Auth
	JWKSURL             string        `env:"JWKS_URL,notEmpty"`
	Issuer              string        `env:"ISSUER,notEmpty"`
	Audience            string        `env:"AUDIENCE,notEmpty"`
	AdminRole           string        `env:"ADMIN_ROLE" envDefault:"support-admin"`
	RefreshJWKSInterval time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"5m"`
	ClockSkew           time.Duration `env:"JWT_CLOCK_SKEW" envDefault:"30s"`

	// Chat core
	// Retention applies to archived conversations only; the sweeper deletes
	// them permanently once archived_at is older than this window.
	ArchiveRetention time.Duration `env:"ARCHIVE_RETENTION" envDefault:"720h"`
	SweepIntervalMin int           `env:"SWEEP_INTERVAL_MINUTES" envDefault:"60"`
	SweepEnabled     bool          `env:"SWEEP_ENABLED" envDefault:"true"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`

	// Observability / Logging
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	ServiceName string        `env:"SERVICE_NAME" envDefault:"chat-api"`
	Environment string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string        `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Internal
	EnvReloadedAt time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("invalid JWKS_URL: %w", err)
	}

	if cfg.ArchiveRetention <= 0 {
		return nil, errors.New("ARCHIVE_RETENTION must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.EnvReloadedAt = time.Now()

	globalConfig = cfg

	return cfg, nil
}

// GetGlobal returns the global config instance.
func GetGlobal() *Config {
	return globalConfig
}
