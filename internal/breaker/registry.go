package breaker

import (
	"sync"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// Registry manages breakers for multiple dependencies, keyed by name.
// It is constructed once at process start and passed to every component
// that talks to the outside world.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   *Config
	clock    clock.Clock
}

// NewRegistry creates a registry with the given default config.
func NewRegistry(config *Config, clk clock.Clock) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   config,
		clock:    clk,
	}
}

// Get returns the breaker for a dependency name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, exists := r.breakers[name]
	r.mu.RUnlock()

	if exists {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists = r.breakers[name]; exists {
		return b
	}

	b = New(name, r.config, r.clock)
	r.breakers[name] = b
	return b
}

// Stats returns snapshots for all registered breakers.
func (r *Registry) Stats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		stats[name] = b.Stats()
	}
	return stats
}

// ResetAll resets every registered breaker to closed state.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
