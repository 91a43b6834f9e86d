// Package budget classifies job spend against budget limits and cancels jobs
// that run past them.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/metrics"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/notify"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/queue"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/storage"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// Config configures budget enforcement.
type Config struct {
	// ApproachingRatio is the spend/limit ratio that triggers a warning.
	ApproachingRatio float64
	// CancelRatio is the spend/limit ratio that triggers cancellation.
	CancelRatio float64
	// NotifyTimeout bounds each notification delivery.
	NotifyTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ApproachingRatio: 0.8,
		CancelRatio:      0.95,
		NotifyTimeout:    10 * time.Second,
	}
}

// Enforcer watches job cost states and enforces budget limits. It is wired
// as a ledger update hook, so every recorded cost event is evaluated.
type Enforcer struct {
	config   *Config
	jobs     storage.JobStore
	queue    queue.Queue
	notifier notify.Notifier
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	warned map[string]bool
}

// New creates an Enforcer. queue and notifier may be nil.
func New(config *Config, jobs storage.JobStore, q queue.Queue, notifier notify.Notifier, clk clock.Clock, logger zerolog.Logger, m *metrics.Metrics) *Enforcer {
	if config == nil {
		config = DefaultConfig()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Enforcer{
		config:   config,
		jobs:     jobs,
		queue:    q,
		notifier: notifier,
		clock:    clk,
		logger:   logger.With().Str("component", "budget").Logger(),
		metrics:  m,
		warned:   make(map[string]bool),
	}
}

// Evaluate classifies a spend against a limit. A zero or negative limit
// means unlimited and is always within budget.
func (e *Enforcer) Evaluate(actualCost, budgetLimit float64) models.BudgetStatus {
	if budgetLimit <= 0 {
		return models.BudgetWithin
	}
	switch {
	case actualCost >= budgetLimit:
		return models.BudgetExceeded
	case actualCost >= e.config.ApproachingRatio*budgetLimit:
		return models.BudgetApproaching
	default:
		return models.BudgetWithin
	}
}

// OnCostUpdate reacts to a fresh cost state: warns once when a job
// approaches its budget and cancels it at the cancel threshold. Intended as
// a ledger update hook.
func (e *Enforcer) OnCostUpdate(state models.JobCostState) {
	if state.BudgetLimit <= 0 {
		return
	}

	if state.ActualCost >= e.config.CancelRatio*state.BudgetLimit {
		if err := e.Cancel(context.Background(), state.JobID, state.ActualCost, state.BudgetLimit); err != nil {
			e.logger.Error().Err(err).Str("job_id", state.JobID).Msg("budget cancellation incomplete")
		}
		return
	}

	if e.Evaluate(state.ActualCost, state.BudgetLimit) == models.BudgetApproaching && e.markWarned(state.JobID) {
		e.logger.Warn().
			Str("job_id", state.JobID).
			Float64("actual_cost", state.ActualCost).
			Float64("budget_limit", state.BudgetLimit).
			Msg("job approaching budget limit")
		e.send(notify.Event{
			Kind:    notify.KindBudgetApproaching,
			JobID:   state.JobID,
			Message: fmt.Sprintf("job has spent %.4f of its %.4f budget", state.ActualCost, state.BudgetLimit),
		})
	}
}

// Cancel stops a job that ran past its budget. All three steps are
// attempted even when earlier ones fail: the record update, the queue
// removal and the notification. The returned error aggregates whatever
// failed. Cancelling an already terminal job is a no-op.
func (e *Enforcer) Cancel(ctx context.Context, jobID string, actualCost, budgetLimit float64) error {
	var errs []error

	job, err := e.jobs.GetJob(jobID)
	if err != nil {
		errs = append(errs, fmt.Errorf("load job: %w", err))
	} else if job.Status.IsTerminal() {
		return nil
	} else {
		now := e.clock.Now()
		job.Status = models.JobCancelled
		job.ErrorDetails = fmt.Sprintf("cancelled: budget limit %.4f reached at cost %.4f", budgetLimit, actualCost)
		job.CompletedAt = &now
		job.UpdatedAt = now
		if err := e.jobs.UpdateJob(job); err != nil {
			errs = append(errs, fmt.Errorf("update job: %w", err))
		}
	}

	if e.queue != nil {
		if err := e.removeFromQueue(ctx, jobID); err != nil {
			// Queue removal is best effort; the janitor catches leftovers.
			e.logger.Warn().Err(err).Str("job_id", jobID).Msg("queue removal failed during cancellation")
		}
	}

	e.send(notify.Event{
		Kind:    notify.KindJobCancelled,
		JobID:   jobID,
		Message: fmt.Sprintf("job cancelled: budget limit %.4f reached at cost %.4f", budgetLimit, actualCost),
	})

	e.metrics.RecordJobCancelled("budget")
	e.logger.Info().
		Str("job_id", jobID).
		Float64("actual_cost", actualCost).
		Float64("budget_limit", budgetLimit).
		Msg("job cancelled over budget")

	if len(errs) > 0 {
		return fmt.Errorf("cancel job %s: %v", jobID, errs)
	}
	return nil
}

// markWarned records the first warning for a job; repeats return false.
func (e *Enforcer) markWarned(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.warned[jobID] {
		return false
	}
	e.warned[jobID] = true
	return true
}

func (e *Enforcer) removeFromQueue(ctx context.Context, jobID string) error {
	waiting, err := e.queue.ListWaiting(ctx)
	if err != nil {
		return err
	}
	for _, entry := range waiting {
		if entry.JobID == jobID {
			if err := e.queue.Remove(ctx, entry.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Enforcer) send(event notify.Event) {
	event.OccurredAt = e.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), e.config.NotifyTimeout)
	defer cancel()
	if err := e.notifier.Send(ctx, event); err != nil {
		e.logger.Warn().Err(err).Str("kind", event.Kind).Msg("notification delivery failed")
	}
}
