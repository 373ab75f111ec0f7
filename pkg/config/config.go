// Package config reads service settings from the environment, optionally
// seeded from a local .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// devSecret is only accepted outside production.
const devSecret = "dev-insecure-secret-change"

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	// HTTP server
	Port            string        `env:"PORT" envDefault:"8081"`
	AppEnv          string        `env:"APP_ENV" envDefault:"production"`
	CORSOrigin      string        `env:"CORS_ORIGIN"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Storage
	DataBackend  string `env:"DATA_BACKEND" envDefault:"postgres"`
	DatabaseDSN  string `env:"DB_DSN"`
	AutoMigrate  bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	UploadBase   string `env:"UPLOAD_BASE" envDefault:"uploads"`

	// Auth
	JWTSecret  string        `env:"JWT_SECRET"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"168h"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"720h"`

	// Events
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"finapi.events"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// DevSecret is set when JWT_SECRET was empty and the development
	// fallback was applied.
	DevSecret bool `env:"-"`
}

// Load reads .env (never overriding variables already set), parses the
// environment and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment without touching .env or validating.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devSecret
		cfg.DevSecret = true
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsDevelopment enables internal error detail in responses.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.AppEnv {
	case "production", "development", "test":
	default:
		problems = append(problems, fmt.Sprintf("invalid APP_ENV '%s': must be production, development or test", c.AppEnv))
	}

	switch c.DataBackend {
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			problems = append(problems, "DB_DSN is required when using the postgres backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendPostgres, BackendMemory))
	}
	if c.MaxOpenConns < 1 {
		problems = append(problems, fmt.Sprintf("invalid DB_MAX_OPEN_CONNS %d: must be at least 1", c.MaxOpenConns))
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required in production")
	} else if c.IsProduction() && len(c.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters in production")
	}
	if c.JWTTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid JWT_TTL %v: must be at least 1 minute", c.JWTTTL))
	}
	if c.RefreshTTL < c.JWTTTL {
		problems = append(problems, fmt.Sprintf("invalid REFRESH_TTL %v: must not be shorter than JWT_TTL", c.RefreshTTL))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := c.SlogLevel(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("invalid LOG_FORMAT '%s': must be text or json", c.LogFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL '%s': %w", c.LogLevel, err)
	}
	return lvl, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
