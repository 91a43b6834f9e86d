package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// entry is one cached value in the in-process tier.
type entry struct {
	value        []byte
	createdAt    time.Time
	ttl          time.Duration
	sizeBytes    int64
	accessCount  int64
	lastAccessed time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// memoryTier is the bounded in-process cache tier. Space accounting is
// recomputed under the lock at every insert; no size assumptions survive
// across calls.
type memoryTier struct {
	mu      sync.Mutex
	entries map[string]*entry
	used    int64
	budget  int64
	clock   clock.Clock
	stats   *counters
}

func newMemoryTier(budget int64, clk clock.Clock, stats *counters) *memoryTier {
	return &memoryTier{
		entries: make(map[string]*entry),
		budget:  budget,
		clock:   clk,
		stats:   stats,
	}
}

func (t *memoryTier) get(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.entries[key]
	if !found {
		return nil, false
	}

	now := t.clock.Now()
	if e.expired(now) {
		t.remove(key, e)
		t.stats.evictionsExpired.Add(1)
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = now
	return e.value, true
}

func (t *memoryTier) set(key string, value []byte, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := int64(len(value))
	if size > t.budget {
		// A value that can never fit is served uncached.
		return
	}

	if old, found := t.entries[key]; found {
		t.remove(key, old)
	}

	if t.used+size > t.budget {
		t.evict(t.used + size - t.budget)
	}

	now := t.clock.Now()
	t.entries[key] = &entry{
		value:        value,
		createdAt:    now,
		ttl:          ttl,
		sizeBytes:    size,
		lastAccessed: now,
	}
	t.used += size
}

// evict frees at least need bytes: expired entries first, then LRU by
// ascending lastAccessed. Must be called with the lock held.
func (t *memoryTier) evict(need int64) {
	now := t.clock.Now()
	var freed int64

	for key, e := range t.entries {
		if e.expired(now) {
			freed += e.sizeBytes
			t.remove(key, e)
			t.stats.evictionsExpired.Add(1)
		}
	}
	if freed >= need {
		return
	}

	type candidate struct {
		key string
		e   *entry
	}
	candidates := make([]candidate, 0, len(t.entries))
	for key, e := range t.entries {
		candidates = append(candidates, candidate{key, e})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].e.lastAccessed.Before(candidates[j].e.lastAccessed)
	})

	for _, c := range candidates {
		if freed >= need {
			break
		}
		freed += c.e.sizeBytes
		t.remove(c.key, c.e)
		t.stats.evictionsLRU.Add(1)
	}
}

func (t *memoryTier) delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, found := t.entries[key]; found {
		t.remove(key, e)
	}
}

// remove must be called with the lock held.
func (t *memoryTier) remove(key string, e *entry) {
	t.used -= e.sizeBytes
	delete(t.entries, key)
}

func (t *memoryTier) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
	t.used = 0
}
