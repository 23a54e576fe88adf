// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const developmentJWTSecret = "cims-development-secret-change-me"

// Config is the complete service configuration
type Config struct {
	Env      string         `yaml:"env" env:"CIMS_ENV"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Codes    CodesConfig    `yaml:"codes"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"CIMS_HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"CIMS_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"CIMS_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"CIMS_HTTP_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	// Path of the SQLite file; ":memory:" keeps everything in memory
	Path string `yaml:"path" env:"CIMS_DB_PATH"`
}

type RedisConfig struct {
	// URL enables the shared lock and event channel; empty runs single-process
	URL           string `yaml:"url" env:"REDIS_URL"`
	EventsChannel string `yaml:"eventsChannel" env:"CIMS_EVENTS_CHANNEL"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwtSecret" env:"JWT_SECRET"`
	Issuer        string        `yaml:"issuer" env:"JWT_ISSUER"`
	AccessExpiry  time.Duration `yaml:"accessExpiry" env:"JWT_EXPIRES_IN"`
	RefreshExpiry time.Duration `yaml:"refreshExpiry" env:"JWT_REFRESH_EXPIRES_IN"`
	BcryptCost    int           `yaml:"bcryptCost" env:"BCRYPT_ROUNDS"`
	ResetTokenTTL time.Duration `yaml:"resetTokenTTL" env:"CIMS_RESET_TOKEN_TTL"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type AlertsConfig struct {
	Schedule      string        `yaml:"schedule" env:"CIMS_ALERT_SCHEDULE"`
	ExpiryWindow  time.Duration `yaml:"expiryWindow" env:"CIMS_ALERT_EXPIRY_WINDOW"`
	SweepDisabled bool          `yaml:"sweepDisabled" env:"CIMS_ALERT_SWEEP_DISABLED"`
}

type CodesConfig struct {
	MaxAttempts int           `yaml:"maxAttempts" env:"CIMS_CODE_MAX_ATTEMPTS"`
	LockTTL     time.Duration `yaml:"lockTTL" env:"CIMS_CODE_LOCK_TTL"`
}

// Default returns the development configuration
func Default() Config {
	return Config{
		Env: EnvDevelopment,
		HTTP: HTTPConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "cims.db"},
		Redis:    RedisConfig{EventsChannel: "cims.events"},
		Auth: AuthConfig{
			Issuer:        "cims",
			AccessExpiry:  12 * time.Hour,
			RefreshExpiry: 7 * 24 * time.Hour,
			BcryptCost:    12,
			ResetTokenTTL: time.Hour,
		},
		Log: LogConfig{Level: "info"},
		Alerts: AlertsConfig{
			Schedule:     "*/15 * * * *",
			ExpiryWindow: 30 * 24 * time.Hour,
		},
		Codes: CodesConfig{MaxAttempts: 5, LockTTL: 5 * time.Second},
	}
}

// Load reads path (when not empty), applies environment overrides and validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Auth.JWTSecret == "" && cfg.Env != EnvProduction {
		cfg.Auth.JWTSecret = developmentJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("env must be development, production or test, got %q", c.Env))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.Env == EnvProduction && c.Auth.JWTSecret == developmentJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must not use the development default in production"))
	}
	if c.Auth.AccessExpiry <= 0 || c.Auth.RefreshExpiry <= 0 {
		errs = append(errs, errors.New("token expiries must be positive"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http addr cannot be empty"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path cannot be empty"))
	}
	if c.Codes.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("code max attempts must be at least 1, got %d", c.Codes.MaxAttempts))
	}
	if !c.Alerts.SweepDisabled {
		if _, err := cron.ParseStandard(c.Alerts.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid alert schedule %q: %w", c.Alerts.Schedule, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}
