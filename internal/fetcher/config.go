package fetcher

import (
	"time"

	"github.com/ranamudassir31/webpulse-ai/internal/circuitbreaker"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/retry"
)

// Default configuration values.
const (
	defaultWorkerCount    = domain.DefaultConcurrency
	defaultUserAgent      = "WebPulse-Crawler/1.0"
	defaultRequestTimeout = time.Duration(domain.DefaultFetchTimeoutMS) * time.Millisecond
	defaultMaxRedirects   = 5
	defaultMaxBodyBytes   = 10 * 1024 * 1024 // 10 MB
)

// Config holds fetcher configuration.
type Config struct {
	WorkerCount    int                   `mapstructure:"worker_count"    yaml:"worker_count"`
	UserAgent      string                `mapstructure:"user_agent"      yaml:"user_agent"`
	RequestTimeout time.Duration         `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxRedirects   int                   `mapstructure:"max_redirects"   yaml:"max_redirects"`
	MaxBodyBytes   int64                 `mapstructure:"max_body_bytes"  yaml:"max_body_bytes"`
	Retry          retry.Config          `mapstructure:"retry"           yaml:"retry"`
	Breaker        circuitbreaker.Config `mapstructure:"breaker"         yaml:"breaker"`
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = defaultWorkerCount
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	c.Retry = c.Retry.WithDefaults()
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = circuitbreaker.DefaultFailureThreshold
	}
	if c.Breaker.CoolDown <= 0 {
		c.Breaker.CoolDown = circuitbreaker.DefaultCoolDown
	}
	return c
}
