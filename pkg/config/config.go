package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/taskflow-dev/todo-backend/pkg/apperrors"
)

const (
	configFile = "config.yaml"
	envFile    = ".env"
)

// Config holds all configuration for todo-backend.
// Values come from config.yaml (optional), a .env file (optional) and the
// process environment, in increasing order of precedence.
// Secrets (auth secret, database URL) must only come from the environment.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// FrontendURL is the origin of the web client.
	FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL" env-default:"http://localhost:3000"`

	// BackendURL is the externally visible base URL of this service.
	BackendURL string `yaml:"backend_url" env:"BACKEND_URL" env-default:"http://localhost:8000"`

	// BetterAuthSecret is shared with the auth provider in front of this service.
	BetterAuthSecret string `yaml:"-" env:"BETTER_AUTH_SECRET" env-required:"true"` // Secret - not in YAML

	// Debug switches to human-readable development logging.
	Debug bool `yaml:"debug" env:"DEBUG" env-default:"true"`

	// Database configuration (Neon PostgreSQL)
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds connection pool configuration.
type DatabaseConfig struct {
	URL         string        `yaml:"-" env:"NEON_DB_URL" env-required:"true"` // Secret - not in YAML
	SSLMode     string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"require"`
	PoolRecycle time.Duration `yaml:"pool_recycle" env:"DB_POOL_RECYCLE" env-default:"300s"`
	PoolPrePing bool          `yaml:"pool_pre_ping" env:"DB_POOL_PRE_PING" env-default:"true"`
	PoolSize    int32         `yaml:"pool_size" env:"DB_POOL_SIZE" env-default:"10"`
	MaxOverflow int32         `yaml:"max_overflow" env:"DB_MAX_OVERFLOW" env-default:"20"`
	PoolTimeout time.Duration `yaml:"pool_timeout" env:"DB_POOL_TIMEOUT" env-default:"30s"`
}

// sslModes are the values libpq accepts for sslmode.
var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Load reads configuration with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A .env file in the working directory is loaded first without overriding
// variables that are already set.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to read %s: %v", apperrors.ErrInvalidConfig, envFile, err)
	}

	if _, err := os.Stat(configFile); err == nil {
		if err := cleanenv.ReadConfig(configFile, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", apperrors.ErrInvalidConfig, configFile, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to read environment: %v", apperrors.ErrInvalidConfig, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// validate checks values that cleanenv cannot express with tags.
func (c *Config) validate() error {
	if _, err := url.Parse(c.FrontendURL); err != nil {
		return fmt.Errorf("invalid FRONTEND_URL: %w", err)
	}
	if _, err := url.Parse(c.BackendURL); err != nil {
		return fmt.Errorf("invalid BACKEND_URL: %w", err)
	}
	return c.Database.validate()
}

func (c *DatabaseConfig) validate() error {
	if !slices.Contains(sslModes, c.SSLMode) {
		return fmt.Errorf("invalid DB_SSL_MODE %q", c.SSLMode)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("DB_POOL_SIZE must be at least 1, got %d", c.PoolSize)
	}
	if c.MaxOverflow < 0 {
		return fmt.Errorf("DB_MAX_OVERFLOW must not be negative, got %d", c.MaxOverflow)
	}
	if c.PoolRecycle <= 0 {
		return fmt.Errorf("DB_POOL_RECYCLE must be positive, got %s", c.PoolRecycle)
	}
	if c.PoolTimeout <= 0 {
		return fmt.Errorf("DB_POOL_TIMEOUT must be positive, got %s", c.PoolTimeout)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}
