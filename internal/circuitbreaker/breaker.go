// Package circuitbreaker guards hosts that fail repeatedly. A breaker opens
// after consecutive failures, rejects calls during a cool-down, then admits a
// single trial request whose outcome closes or re-opens it.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTrialInFlight is returned while a half-open trial request is outstanding
	ErrTrialInFlight = errors.New("circuit breaker trial request in flight")
)

// Defaults for fetch host breakers.
const (
	DefaultFailureThreshold = 5
	DefaultCoolDown         = 30 * time.Second
)

// State represents the state of the circuit breaker
type State int

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = iota
	// StateOpen means the circuit is open and requests are blocked
	StateOpen
	// StateHalfOpen means a single trial request is allowed
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit
	FailureThreshold int `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	// CoolDown is how long the circuit stays open before allowing a trial request
	CoolDown time.Duration `mapstructure:"cool_down" yaml:"cool_down"`
	// OnStateChange is an optional callback when state changes
	OnStateChange func(from, to State) `mapstructure:"-" yaml:"-"`
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		CoolDown:         DefaultCoolDown,
	}
}

// Breaker implements a circuit breaker pattern
type Breaker struct {
	mu            sync.Mutex
	state         State
	failureCount  int
	openedAt      time.Time
	probing       bool
	config        Config
	onStateChange func(from, to State)
}

// New creates a new circuit breaker with the given configuration
func New(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.CoolDown <= 0 {
		config.CoolDown = DefaultCoolDown
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Breaker{
		state:         StateClosed,
		config:        config,
		onStateChange: config.OnStateChange,
	}
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by exactly one RecordSuccess, RecordFailure or RecordNeutral.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		elapsed := b.config.Now().Sub(b.openedAt)
		if elapsed < b.config.CoolDown {
			return fmt.Errorf("%w: retry after %v", ErrCircuitOpen, b.config.CoolDown-elapsed)
		}
		b.transitionTo(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrTrialInFlight
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess records a healthy response and closes a half-open breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.probing = false
	if b.state == StateHalfOpen {
		b.transitionTo(StateClosed)
	}
}

// RecordFailure records a transient failure.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	case StateOpen:
	}
}

// RecordNeutral releases an allowed call without changing failure counts.
// Used when the call was abandoned before producing an outcome.
func (b *Breaker) RecordNeutral() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
}

func (b *Breaker) open() {
	b.openedAt = b.config.Now()
	b.transitionTo(StateOpen)
}

// transitionTo transitions to a new state
func (b *Breaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState

	switch newState {
	case StateClosed, StateOpen:
		b.failureCount = 0
		b.probing = false
	case StateHalfOpen:
	}

	if b.onStateChange != nil {
		b.onStateChange(oldState, newState)
	}
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset resets the circuit breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionTo(StateClosed)
}

// Stats returns statistics about the circuit breaker
type Stats struct {
	State        State
	FailureCount int
	OpenedAt     time.Time
}

// GetStats returns current statistics
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:        b.state,
		FailureCount: b.failureCount,
		OpenedAt:     b.openedAt,
	}
}
