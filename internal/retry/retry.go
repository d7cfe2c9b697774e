// Package retry provides exponential backoff with jitter for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMaxAttemptsExceeded is returned when max retry attempts are exceeded
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	// ErrContextCancelled is returned when the context is cancelled during retry
	ErrContextCancelled = errors.New("context cancelled during retry")
)

// Defaults for the fetch retry schedule.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialDelay   = 500 * time.Millisecond
	DefaultMaxDelay       = 30 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitterFraction = 0.25
	DefaultMaxRetryAfter  = 60 * time.Second
)

// Delayer is implemented by errors that carry a server-mandated retry delay,
// such as a 429 response with a Retry-After header.
type Delayer interface {
	RetryAfter() (time.Duration, bool)
}

// Config configures retry behavior
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	// Multiplier is the exponential backoff multiplier
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`
	// JitterFraction adds a random delay in [0, JitterFraction*interval]
	JitterFraction float64 `mapstructure:"jitter_fraction" yaml:"jitter_fraction"`
	// MaxRetryAfter caps delays requested through Retry-After
	MaxRetryAfter time.Duration `mapstructure:"max_retry_after" yaml:"max_retry_after"`
	// IsRetryable determines if an error should be retried
	IsRetryable func(error) bool `mapstructure:"-" yaml:"-"`
	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error `mapstructure:"-" yaml:"-"`
	// Jitter returns a value in [0, 1). Defaults to math/rand/v2.
	Jitter func() float64 `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the fetch retry schedule: 3 attempts, 500ms base
// doubling, up to 25% jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		InitialDelay:   DefaultInitialDelay,
		MaxDelay:       DefaultMaxDelay,
		Multiplier:     DefaultMultiplier,
		JitterFraction: DefaultJitterFraction,
		MaxRetryAfter:  DefaultMaxRetryAfter,
	}
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = DefaultMultiplier
	}
	if c.JitterFraction < 0 {
		c.JitterFraction = 0
	}
	if c.MaxRetryAfter <= 0 {
		c.MaxRetryAfter = DefaultMaxRetryAfter
	}
	if c.IsRetryable == nil {
		c.IsRetryable = func(err error) bool { return err != nil }
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	if c.Jitter == nil {
		c.Jitter = rand.Float64
	}
	return c
}

// Backoff returns the delay after the given failed attempt (1-based),
// including jitter.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	interval := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if interval > float64(c.MaxDelay) {
		interval = float64(c.MaxDelay)
	}

	jitter := 0.0
	if c.JitterFraction > 0 && c.Jitter != nil {
		jitter = interval * c.JitterFraction * c.Jitter()
	}

	return time.Duration(interval + jitter)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. fn is always called at least once; cancellation of
// ctx is observed between attempts. It returns the number of attempts made. When the
// error implements Delayer, its delay (capped at MaxRetryAfter) replaces the
// backoff schedule for that retry.
func Retry(ctx context.Context, config Config, fn func(attempt int) error) (int, error) {
	config = config.WithDefaults()

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if attempt > 1 && ctx.Err() != nil {
			return attempt - 1, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}

		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}

		lastErr = err

		if !config.IsRetryable(err) {
			return attempt, err
		}

		if attempt == config.MaxAttempts {
			break
		}

		if sleepErr := config.Sleep(ctx, config.delayFor(err, attempt)); sleepErr != nil {
			return attempt, fmt.Errorf("%w: %w", ErrContextCancelled, sleepErr)
		}
	}

	return config.MaxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, config.MaxAttempts, lastErr)
}

func (c Config) delayFor(err error, attempt int) time.Duration {
	var d Delayer
	if errors.As(err, &d) {
		if after, ok := d.RetryAfter(); ok {
			return min(after, c.MaxRetryAfter)
		}
	}
	return c.Backoff(attempt)
}

// ParseRetryAfter parses a Retry-After header given either as delay seconds
// or as an HTTP-date. Dates in the past yield a zero delay.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}

	if d := when.Sub(now); d > 0 {
		return d, true
	}
	return 0, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
