package job

import (
	"errors"
	"fmt"

	"github.com/ranamudassir31/webpulse-ai/internal/aggregator"
	"github.com/ranamudassir31/webpulse-ai/internal/domain"
	"github.com/ranamudassir31/webpulse-ai/internal/frontier"
)

// Manager defaults.
const (
	DefaultMaxActiveJobs          = 10
	DefaultFailureRateThreshold   = 0.5
	DefaultFailureRateMinAttempts = 10
	DefaultMaxPagesLimit          = 1000
	DefaultMaxDepthLimit          = 10
	DefaultMaxConcurrencyLimit    = 16
)

// Config holds job manager configuration.
type Config struct {
	MaxActiveJobs          int               `mapstructure:"max_active_jobs"`
	FailureRateThreshold   float64           `mapstructure:"failure_rate_threshold"`
	FailureRateMinAttempts int               `mapstructure:"failure_rate_min_attempts"`
	PerHostLimit           int               `mapstructure:"per_host_limit"`
	MaxPagesLimit          int               `mapstructure:"max_pages_limit"`
	MaxDepthLimit          int               `mapstructure:"max_depth_limit"`
	MaxConcurrencyLimit    int               `mapstructure:"max_concurrency_limit"`
	Defaults               domain.JobConfig  `mapstructure:"defaults"`
	Aggregator             aggregator.Config `mapstructure:"aggregator"`
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.MaxActiveJobs <= 0 {
		c.MaxActiveJobs = DefaultMaxActiveJobs
	}
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = DefaultFailureRateThreshold
	}
	if c.FailureRateMinAttempts <= 0 {
		c.FailureRateMinAttempts = DefaultFailureRateMinAttempts
	}
	if c.PerHostLimit <= 0 {
		c.PerHostLimit = frontier.DefaultPerHostLimit
	}
	if c.MaxPagesLimit <= 0 {
		c.MaxPagesLimit = DefaultMaxPagesLimit
	}
	if c.MaxDepthLimit <= 0 {
		c.MaxDepthLimit = DefaultMaxDepthLimit
	}
	if c.MaxConcurrencyLimit <= 0 {
		c.MaxConcurrencyLimit = DefaultMaxConcurrencyLimit
	}

	def := domain.DefaultJobConfig()
	if c.Defaults == (domain.JobConfig{}) {
		c.Defaults = def
	}
	if c.Defaults.MaxPages <= 0 {
		c.Defaults.MaxPages = def.MaxPages
	}
	if c.Defaults.MaxDepth < 0 {
		c.Defaults.MaxDepth = def.MaxDepth
	}
	if c.Defaults.Concurrency <= 0 {
		c.Defaults.Concurrency = def.Concurrency
	}
	if c.Defaults.FetchTimeoutMS <= 0 {
		c.Defaults.FetchTimeoutMS = def.FetchTimeoutMS
	}

	c.Aggregator = c.Aggregator.WithDefaults()
	return c
}

// Validate checks the manager configuration.
func (c Config) Validate() error {
	if c.FailureRateThreshold > 1 {
		return errors.New("jobs.failure_rate_threshold must be within (0, 1]")
	}
	if c.Aggregator.Weights != (aggregator.Weights{}) {
		if err := c.Aggregator.Validate(); err != nil {
			return fmt.Errorf("jobs.aggregator: %w", err)
		}
	}
	return nil
}

// resolve applies defaults to a requested job config and checks it against
// the manager limits. Nil fields take the configured defaults.
func (c Config) resolve(req domain.JobRequest) (domain.JobConfig, error) {
	out := c.Defaults
	if req.MaxPages != nil {
		out.MaxPages = *req.MaxPages
	}
	if req.MaxDepth != nil {
		out.MaxDepth = *req.MaxDepth
	}
	if req.Concurrency != nil {
		out.Concurrency = *req.Concurrency
	}
	if req.SameDomainOnly != nil {
		out.SameDomainOnly = *req.SameDomainOnly
	}
	if req.FetchTimeoutMS != nil {
		out.FetchTimeoutMS = *req.FetchTimeoutMS
	}

	switch {
	case out.MaxPages < 1 || out.MaxPages > c.MaxPagesLimit:
		return out, fmt.Errorf("%w: max_pages must be between 1 and %d", ErrInvalidConfig, c.MaxPagesLimit)
	case out.MaxDepth < 0 || out.MaxDepth > c.MaxDepthLimit:
		return out, fmt.Errorf("%w: max_depth must be between 0 and %d", ErrInvalidConfig, c.MaxDepthLimit)
	case out.Concurrency < 1 || out.Concurrency > c.MaxConcurrencyLimit:
		return out, fmt.Errorf("%w: concurrency must be between 1 and %d", ErrInvalidConfig, c.MaxConcurrencyLimit)
	case out.FetchTimeoutMS <= 0:
		return out, fmt.Errorf("%w: fetch_timeout_ms must be positive", ErrInvalidConfig)
	}
	return out, nil
}
