// Package ledger maintains the append-only cost event log and the derived
// per-job running cost used for budget enforcement.
package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/metrics"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/storage"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// UpdateHook is invoked after each recorded event with the job's fresh cost
// state. Hooks run synchronously on the recording goroutine; enforcement
// decisions hang off this.
type UpdateHook func(state models.JobCostState)

// Ledger records cost events and tracks running totals per job in memory,
// backed by the append-only event store. The in-memory state avoids a full
// event-sum query on every recording.
type Ledger struct {
	events  storage.EventStore
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	jobs  map[string]*models.JobCostState
	hooks []UpdateHook
}

// New creates a Ledger on top of an event store.
func New(events storage.EventStore, clk clock.Clock, logger zerolog.Logger, m *metrics.Metrics) *Ledger {
	if clk == nil {
		clk = clock.New()
	}
	return &Ledger{
		events:  events,
		clock:   clk,
		logger:  logger.With().Str("component", "ledger").Logger(),
		metrics: m,
		jobs:    make(map[string]*models.JobCostState),
	}
}

// OnUpdate registers a hook called after every recorded event. Must be
// called before recording starts.
func (l *Ledger) OnUpdate(hook UpdateHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// RegisterJob starts cost tracking for a job with its budget and estimate.
// Re-registering an already tracked job is a no-op.
func (l *Ledger) RegisterJob(jobID string, budgetLimit, estimatedCost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.jobs[jobID]; exists {
		return
	}
	l.jobs[jobID] = &models.JobCostState{
		JobID:         jobID,
		EstimatedCost: estimatedCost,
		BudgetLimit:   budgetLimit,
		LastUpdate:    l.clock.Now(),
	}
}

// Forget drops the in-memory state for a job. Persisted events are untouched.
func (l *Ledger) Forget(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, jobID)
}

// RecordEvent appends one cost event and updates the job's running total.
// The total cost is always quantity times unit cost; callers never pass a
// precomputed total.
func (l *Ledger) RecordEvent(jobID, eventType, provider string, quantity, unitCost float64) (*models.CostEvent, error) {
	event := &models.CostEvent{
		ID:         uuid.New().String(),
		JobID:      jobID,
		EventType:  eventType,
		Provider:   provider,
		Quantity:   quantity,
		UnitCost:   unitCost,
		TotalCost:  quantity * unitCost,
		OccurredAt: l.clock.Now(),
	}

	if err := l.events.AppendEvent(event); err != nil {
		return nil, fmt.Errorf("append cost event: %w", err)
	}
	l.metrics.RecordCostEvent(provider, eventType, event.TotalCost)

	l.mu.Lock()
	state, tracked := l.jobs[jobID]
	if !tracked {
		state = &models.JobCostState{JobID: jobID}
		l.jobs[jobID] = state
	}
	state.ActualCost += event.TotalCost
	state.LastUpdate = event.OccurredAt
	snapshot := *state
	hooks := l.hooks
	l.mu.Unlock()

	l.logger.Debug().
		Str("job_id", jobID).
		Str("event_type", eventType).
		Str("provider", provider).
		Float64("total_cost", event.TotalCost).
		Float64("actual_cost", snapshot.ActualCost).
		Msg("cost event recorded")

	for _, hook := range hooks {
		hook(snapshot)
	}
	return event, nil
}

// Status returns a snapshot of a job's cost state.
func (l *Ledger) Status(jobID string) (models.JobCostState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	state, ok := l.jobs[jobID]
	if !ok {
		return models.JobCostState{}, false
	}
	return *state, true
}

// Reconcile recomputes a job's running total from the persisted event sum,
// correcting any drift from a missed in-memory update (process restarts).
func (l *Ledger) Reconcile(jobID string) (models.JobCostState, error) {
	sum, err := l.events.SumCostByJob(jobID)
	if err != nil {
		return models.JobCostState{}, fmt.Errorf("sum cost events: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	state, tracked := l.jobs[jobID]
	if !tracked {
		state = &models.JobCostState{JobID: jobID}
		l.jobs[jobID] = state
	}
	if state.ActualCost != sum {
		l.logger.Warn().
			Str("job_id", jobID).
			Float64("tracked", state.ActualCost).
			Float64("persisted", sum).
			Msg("cost drift corrected during reconciliation")
	}
	state.ActualCost = sum
	state.LastUpdate = l.clock.Now()
	return *state, nil
}

// Events returns the persisted event history for a job, oldest first.
func (l *Ledger) Events(jobID string) ([]*models.CostEvent, error) {
	return l.events.ListEvents(jobID)
}
