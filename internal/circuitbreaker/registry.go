package circuitbreaker

import (
	"sync"
)

// Registry holds one breaker per key, created on first use.
type Registry struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*Breaker
	onChange func(key string, from, to State)
}

// NewRegistry creates a registry whose breakers share config. onChange, when
// non-nil, is called with the breaker's key on every state transition.
func NewRegistry(config Config, onChange func(key string, from, to State)) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*Breaker),
		onChange: onChange,
	}
}

// Get returns the breaker for key.
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[key]; ok {
		return b
	}

	cfg := r.config
	if r.onChange != nil {
		cfg.OnStateChange = func(from, to State) { r.onChange(key, from, to) }
	}
	b := New(cfg)
	r.breakers[key] = b

	return b
}

// Snapshot returns the current state of every breaker by key.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	breakers := make(map[string]*Breaker, len(r.breakers))
	for k, b := range r.breakers {
		breakers[k] = b
	}
	r.mu.Unlock()

	out := make(map[string]State, len(breakers))
	for k, b := range breakers {
		out[k] = b.State()
	}
	return out
}
