// Package breaker provides circuit breaker protection for external dependencies.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed allows requests through.
	StateClosed State = iota
	// StateOpen fails requests fast.
	StateOpen
	// StateHalfOpen allows a single trial request to test recovery.
	StateHalfOpen
)

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

// Operation is a call to an unreliable dependency.
type Operation func(ctx context.Context) error

// Config configures the circuit breaker behavior.
type Config struct {
	// FailureThreshold is the failure ratio (failures/requests) that opens
	// the circuit once MinimumThroughput has been reached.
	FailureThreshold float64
	// MinimumThroughput is the minimum number of requests before the
	// failure ratio is evaluated at all.
	MinimumThroughput int
	// ResetTimeout is how long the circuit stays open before the next call
	// is allowed through as a half-open trial.
	ResetTimeout time.Duration
	// CountsAsFailure decides whether an error counts against the breaker.
	// Defaults to counting every non-nil error. Rate-limit errors are the
	// usual exclusion: they are handled by waiting, not by tripping.
	CountsAsFailure func(error) bool
	// OnStateChange is called whenever the circuit state changes (optional).
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:  0.5,
		MinimumThroughput: 5,
		ResetTimeout:      30 * time.Second,
	}
}

// Metrics holds the outcome counters for one breaker. Counters reset when
// the breaker returns to closed after a successful half-open trial.
type Metrics struct {
	Requests    int64
	Failures    int64
	Successes   int64
	LastFailure time.Time
	LastSuccess time.Time
}

// Breaker wraps calls to a single named dependency.
type Breaker struct {
	mu     sync.Mutex
	config *Config
	name   string
	clock  clock.Clock

	state         State
	metrics       Metrics
	nextAttempt   time.Time
	trialInFlight bool

	totalTransitions int64
	totalOpens       int64
}

// New creates a breaker for the named dependency.
func New(name string, config *Config, clk clock.Clock) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Breaker{
		config: config,
		name:   name,
		clock:  clk,
		state:  StateClosed,
	}
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op under breaker protection. When the circuit is open the
// operation is not invoked: the fallback runs instead if supplied, otherwise
// models.ErrCircuitOpen is returned. The breaker lock is never held across
// the operation itself; outcomes are recorded on completion.
func (b *Breaker) Execute(ctx context.Context, op Operation, fallback Operation) error {
	if !b.allow() {
		if fallback != nil {
			return fallback(ctx)
		}
		return models.ErrCircuitOpen
	}

	err := op(ctx)
	if err != nil && b.countsAsFailure(err) {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return err
}

func (b *Breaker) countsAsFailure(err error) bool {
	if b.config.CountsAsFailure != nil {
		return b.config.CountsAsFailure(err)
	}
	return true
}

// allow decides whether the next call may proceed, transitioning an expired
// open circuit to half-open first.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Before(b.nextAttempt) {
			return false
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		// Exactly one trial per transition cycle.
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		b.transition(StateClosed)
		b.metrics = Metrics{}
	case StateClosed:
		b.metrics.Requests++
		b.metrics.Successes++
		b.metrics.LastSuccess = now
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	switch b.state {
	case StateClosed:
		b.metrics.Requests++
		b.metrics.Failures++
		b.metrics.LastFailure = now
		if b.metrics.Requests >= int64(b.config.MinimumThroughput) &&
			b.failureRatio() >= b.config.FailureThreshold {
			b.transition(StateOpen)
			b.nextAttempt = now.Add(b.config.ResetTimeout)
		}
	case StateHalfOpen:
		b.trialInFlight = false
		b.metrics.LastFailure = now
		b.transition(StateOpen)
		b.nextAttempt = now.Add(b.config.ResetTimeout)
	}
}

// failureRatio must be called with the lock held.
func (b *Breaker) failureRatio() float64 {
	if b.metrics.Requests == 0 {
		return 0
	}
	return float64(b.metrics.Failures) / float64(b.metrics.Requests)
}

// transition must be called with the lock held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.totalTransitions++
	if to == StateOpen {
		b.totalOpens++
	}
	if b.config.OnStateChange != nil {
		// Run outside the lock context to avoid deadlocks in callbacks.
		go b.config.OnStateChange(b.name, from, to)
	}
}

// Healthy reports false when the circuit is open, or when the failure ratio
// under closed state has reached 80% of the configured threshold.
func (b *Breaker) Healthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		return false
	case StateClosed:
		if b.metrics.Requests == 0 {
			return true
		}
		return b.failureRatio() < 0.8*b.config.FailureThreshold
	}
	return true
}

// Reset forces the breaker back to closed state with fresh metrics.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialInFlight = false
	b.transition(StateClosed)
	b.metrics = Metrics{}
}

// Stats is a point-in-time snapshot of breaker state.
type Stats struct {
	Name             string
	State            State
	Metrics          Metrics
	NextAttempt      time.Time
	TotalTransitions int64
	TotalOpens       int64
}

// Stats returns a snapshot of the breaker's counters and state.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:             b.name,
		State:            b.state,
		Metrics:          b.metrics,
		NextAttempt:      b.nextAttempt,
		TotalTransitions: b.totalTransitions,
		TotalOpens:       b.totalOpens,
	}
}
