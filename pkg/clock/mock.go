package clock

import (
	"sync"
	"time"
)

// MockClock is a Clock implementation for tests that allows manual time control.
// Sleep advances the mock's own time instead of blocking, so code under test
// that paces itself with Sleep runs instantly.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*mockWaiter
	tickers []*mockTicker
}

type mockWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewMock returns a new MockClock set to the given time.
func NewMock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mock's current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Since returns the elapsed mock time since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the mock clock forward, firing any due waiters and tickers.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.deadline.After(now) {
			select {
			case w.ch <- now:
			default:
			}
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	tickers := append([]*mockTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, tk := range tickers {
		tk.advanceTo(now)
	}
}

// Set jumps the mock clock to an absolute time.
func (c *MockClock) Set(t time.Time) {
	c.Advance(t.Sub(c.Now()))
}

// After returns a channel that fires once the mock clock has advanced past d.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, &mockWaiter{deadline: c.current.Add(d), ch: ch})
	return ch
}

// Sleep advances the mock clock by d without blocking.
func (c *MockClock) Sleep(d time.Duration) {
	if d > 0 {
		c.Advance(d)
	}
}

// NewTicker returns a Ticker driven by Advance.
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &mockTicker{
		clock:    c,
		interval: d,
		next:     c.current.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, tk)
	return tk
}

type mockTicker struct {
	clock    *MockClock
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *mockTicker) C() <-chan time.Time {
	return t.ch
}

func (t *mockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *mockTicker) advanceTo(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	for !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default:
		}
		t.next = t.next.Add(t.interval)
	}
}
