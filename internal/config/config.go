// Package config loads WebPulse configuration from defaults, an optional
// YAML file, a .env file and WEBPULSE_* environment variables.
package config

import (
	"errors"
	"fmt"

	"github.com/ranamudassir31/webpulse-ai/internal/fetcher"
	"github.com/ranamudassir31/webpulse-ai/internal/job"
	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/report"
	"github.com/ranamudassir31/webpulse-ai/internal/server"
	"github.com/ranamudassir31/webpulse-ai/internal/store"
)

// ErrConfigInvalid is returned when a loaded configuration fails validation.
var ErrConfigInvalid = errors.New("invalid configuration")

// ValidationError represents an error in configuration validation.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match ErrConfigInvalid.
func (e *ValidationError) Unwrap() error { return ErrConfigInvalid }

// AppConfig identifies the running service.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ReportConfig selects the document format rendered when a job completes.
type ReportConfig struct {
	Format string `mapstructure:"format"`
}

// Config is the root configuration.
type Config struct {
	App     AppConfig      `mapstructure:"app"`
	Logger  logger.Config  `mapstructure:"logger"`
	Server  server.Config  `mapstructure:"server"`
	Fetcher fetcher.Config `mapstructure:"fetcher"`
	Jobs    job.Config     `mapstructure:"jobs"`
	Store   store.Config   `mapstructure:"store"`
	Report  ReportConfig   `mapstructure:"report"`
}

// IsDevelopment reports whether the service runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Debug
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return &ValidationError{Field: "server.address", Value: c.Server.Address, Reason: "must not be empty"}
	}
	if c.Server.ShutdownTimeout < 0 {
		return &ValidationError{Field: "server.shutdown_timeout", Value: c.Server.ShutdownTimeout, Reason: "must not be negative"}
	}
	if c.Fetcher.WorkerCount < 0 {
		return &ValidationError{Field: "fetcher.worker_count", Value: c.Fetcher.WorkerCount, Reason: "must not be negative"}
	}
	if c.Fetcher.Retry.JitterFraction < 0 || c.Fetcher.Retry.JitterFraction >= 1 {
		return &ValidationError{
			Field:  "fetcher.retry.jitter_fraction",
			Value:  c.Fetcher.Retry.JitterFraction,
			Reason: "must be within [0, 1)",
		}
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return &ValidationError{Field: "report.format", Value: c.Report.Format, Reason: err.Error()}
	}
	if err := c.Jobs.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}
