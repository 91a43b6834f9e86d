// Package cache provides a two-tier response cache used to avoid repeating
// expensive external calls.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// ExternalTier is the optional fast shared tier (Redis in production).
// Any failure in this tier degrades silently to the in-process tier.
type ExternalTier interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the key.
	Delete(ctx context.Context, key string) error
}

// Config configures the cache manager.
type Config struct {
	// MemoryBudgetBytes bounds the in-process tier.
	MemoryBudgetBytes int64
	// DefaultTTL applies when a caller passes a zero TTL.
	DefaultTTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MemoryBudgetBytes: 32 << 20, // 32MB
		DefaultTTL:        5 * time.Minute,
	}
}

// Stats holds cache counters.
type Stats struct {
	MemoryHits       int64
	MemoryMisses     int64
	ExternalHits     int64
	ExternalMisses   int64
	ExternalErrors   int64
	EvictionsExpired int64
	EvictionsLRU     int64
}

type counters struct {
	memoryHits       atomic.Int64
	memoryMisses     atomic.Int64
	externalHits     atomic.Int64
	externalMisses   atomic.Int64
	externalErrors   atomic.Int64
	evictionsExpired atomic.Int64
	evictionsLRU     atomic.Int64
}

// Manager is the two-tier cache. Reads consult the external tier first, then
// the bounded in-process tier; writes go to both. Cache failures never reach
// the caller: they degrade to a miss.
type Manager struct {
	memory   *memoryTier
	external ExternalTier
	config   *Config
	logger   zerolog.Logger
	stats    *counters
}

// New creates a cache manager. external may be nil.
func New(config *Config, external ExternalTier, clk clock.Clock, logger zerolog.Logger) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	stats := &counters{}
	return &Manager{
		memory:   newMemoryTier(config.MemoryBudgetBytes, clk, stats),
		external: external,
		config:   config,
		logger:   logger.With().Str("component", "cache").Logger(),
		stats:    stats,
	}
}

// Get returns the cached value for key, or absent.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool) {
	if m.external != nil {
		value, found, err := m.external.Get(ctx, key)
		if err != nil {
			m.stats.externalErrors.Add(1)
			m.logger.Debug().Err(err).Str("key", key).Msg("external tier read failed, degrading to memory")
		} else if found {
			m.stats.externalHits.Add(1)
			return value, true
		} else {
			m.stats.externalMisses.Add(1)
		}
	}

	value, found := m.memory.get(key)
	if found {
		m.stats.memoryHits.Add(1)
		return value, true
	}
	m.stats.memoryMisses.Add(1)
	return nil, false
}

// Set stores value in both tiers.
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}

	if m.external != nil {
		if err := m.external.Set(ctx, key, value, ttl); err != nil {
			m.stats.externalErrors.Add(1)
			m.logger.Debug().Err(err).Str("key", key).Msg("external tier write failed")
		}
	}
	m.memory.set(key, value, ttl)
}

// Delete removes key from both tiers.
func (m *Manager) Delete(ctx context.Context, key string) {
	if m.external != nil {
		if err := m.external.Delete(ctx, key); err != nil {
			m.stats.externalErrors.Add(1)
			m.logger.Debug().Err(err).Str("key", key).Msg("external tier delete failed")
		}
	}
	m.memory.delete(key)
}

// GetOrSet returns the cached value for key, or invokes supplier and caches
// its result. Concurrent misses for the same key may each invoke supplier;
// suppliers are expected to be idempotent and breaker-protected.
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, supplier func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if value, found := m.Get(ctx, key); found {
		return value, nil
	}

	value, err := supplier(ctx)
	if err != nil {
		return nil, err
	}
	m.Set(ctx, key, value, ttl)
	return value, nil
}

// Flush empties the in-process tier. The external tier is shared with other
// processes and is left alone.
func (m *Manager) Flush() {
	m.memory.flush()
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	return Stats{
		MemoryHits:       m.stats.memoryHits.Load(),
		MemoryMisses:     m.stats.memoryMisses.Load(),
		ExternalHits:     m.stats.externalHits.Load(),
		ExternalMisses:   m.stats.externalMisses.Load(),
		ExternalErrors:   m.stats.externalErrors.Load(),
		EvictionsExpired: m.stats.evictionsExpired.Load(),
		EvictionsLRU:     m.stats.evictionsLRU.Load(),
	}
}
