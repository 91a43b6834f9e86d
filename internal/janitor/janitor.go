// Package janitor reconciles queue state with job records and purges
// expired data on a fixed interval.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/metrics"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/notify"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/queue"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/storage"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

// Config configures the janitor.
type Config struct {
	// Interval is the time between sweeps.
	Interval time.Duration
	// StaleJobAge is how long a waiting entry may sit unclaimed before it is
	// considered abandoned.
	StaleJobAge time.Duration
	// RetryAttempts is the attempt budget before a failed entry is given up.
	RetryAttempts int
	// Retention is how long terminal job records and their cost events are
	// kept before being purged.
	Retention time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:      time.Hour,
		StaleJobAge:   24 * time.Hour,
		RetryAttempts: 3,
		Retention:     30 * 24 * time.Hour,
	}
}

// SweepReport summarizes one sweep. Errors lists every failure encountered;
// a failing step never aborts the rest of the sweep.
type SweepReport struct {
	StaleRemoved   int
	FailedRetried  int
	FailedRemoved  int
	StalledRemoved int
	OrphanedFailed int
	RecordsPurged  int
	Errors         []error
	Duration       time.Duration
}

// SweepTotals accumulates sweep outcomes over the process lifetime.
type SweepTotals struct {
	Sweeps         int `json:"sweeps"`
	StaleRemoved   int `json:"stale_removed"`
	FailedRetried  int `json:"failed_retried"`
	FailedRemoved  int `json:"failed_removed"`
	StalledRemoved int `json:"stalled_removed"`
	OrphanedFailed int `json:"orphaned_failed"`
	RecordsPurged  int `json:"records_purged"`
	Errors         int `json:"errors"`
}

// CleanupMetrics tracks lifetime sweep totals with an explicit reset.
type CleanupMetrics struct {
	mu     sync.Mutex
	totals SweepTotals
}

func (m *CleanupMetrics) record(r *SweepReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Sweeps++
	m.totals.StaleRemoved += r.StaleRemoved
	m.totals.FailedRetried += r.FailedRetried
	m.totals.FailedRemoved += r.FailedRemoved
	m.totals.StalledRemoved += r.StalledRemoved
	m.totals.OrphanedFailed += r.OrphanedFailed
	m.totals.RecordsPurged += r.RecordsPurged
	m.totals.Errors += len(r.Errors)
}

// Snapshot returns the current totals.
func (m *CleanupMetrics) Snapshot() SweepTotals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// Reset zeroes the totals.
func (m *CleanupMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals = SweepTotals{}
}

// Janitor owns the periodic cleanup of queues and storage.
type Janitor struct {
	config   *Config
	store    storage.Store
	queues   []queue.Queue
	notifier notify.Notifier
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	cleanup  CleanupMetrics

	running  atomic.Bool
	sweeping atomic.Bool
	stop     chan struct{}
	done     sync.WaitGroup
}

// New creates a Janitor over the given queues. notifier may be nil.
func New(config *Config, store storage.Store, queues []queue.Queue, notifier notify.Notifier, clk clock.Clock, logger zerolog.Logger, m *metrics.Metrics) *Janitor {
	if config == nil {
		config = DefaultConfig()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Janitor{
		config:   config,
		store:    store,
		queues:   queues,
		notifier: notifier,
		clock:    clk,
		logger:   logger.With().Str("component", "janitor").Logger(),
		metrics:  m,
		stop:     make(chan struct{}),
	}
}

// Start launches the periodic sweep loop. Safe to call once. The ticker is
// registered before Start returns, so mock clocks may be advanced immediately.
func (j *Janitor) Start(ctx context.Context) {
	if !j.running.CompareAndSwap(false, true) {
		return
	}
	ticker := j.clock.NewTicker(j.config.Interval)
	j.done.Add(1)
	go j.loop(ctx, ticker)
	j.logger.Info().Dur("interval", j.config.Interval).Msg("janitor started")
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	if !j.running.CompareAndSwap(true, false) {
		return
	}
	close(j.stop)
	j.done.Wait()
	j.logger.Info().Msg("janitor stopped")
}

func (j *Janitor) loop(ctx context.Context, ticker clock.Ticker) {
	defer j.done.Done()
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C():
			j.sweep(ctx)
		}
	}
}

// sweep runs one sweep unless another is still in flight.
func (j *Janitor) sweep(ctx context.Context) {
	if !j.sweeping.CompareAndSwap(false, true) {
		j.logger.Warn().Msg("previous sweep still running, skipping")
		return
	}
	defer j.sweeping.Store(false)

	report := j.RunOnce(ctx)
	j.metrics.RecordSweep(len(report.Errors))
	event := j.logger.Info()
	if len(report.Errors) > 0 {
		event = j.logger.Warn()
	}
	event.
		Int("stale_removed", report.StaleRemoved).
		Int("failed_retried", report.FailedRetried).
		Int("failed_removed", report.FailedRemoved).
		Int("stalled_removed", report.StalledRemoved).
		Int("orphaned_failed", report.OrphanedFailed).
		Int("records_purged", report.RecordsPurged).
		Int("errors", len(report.Errors)).
		Dur("duration", report.Duration).
		Msg("sweep complete")

	j.notifySummary(ctx, report)
}

// notifySummary reports sweeps that changed something or hit errors. Quiet
// sweeps stay quiet.
func (j *Janitor) notifySummary(ctx context.Context, report *SweepReport) {
	touched := report.StaleRemoved + report.FailedRetried + report.FailedRemoved +
		report.StalledRemoved + report.OrphanedFailed + report.RecordsPurged
	if touched == 0 && len(report.Errors) == 0 {
		return
	}

	err := j.notifier.Send(ctx, notify.Event{
		Kind:    notify.KindCleanupSummary,
		Message: fmt.Sprintf("sweep reconciled %d entries with %d errors", touched, len(report.Errors)),
		Details: map[string]string{
			"stale_removed":   fmt.Sprintf("%d", report.StaleRemoved),
			"failed_retried":  fmt.Sprintf("%d", report.FailedRetried),
			"failed_removed":  fmt.Sprintf("%d", report.FailedRemoved),
			"stalled_removed": fmt.Sprintf("%d", report.StalledRemoved),
			"orphaned_failed": fmt.Sprintf("%d", report.OrphanedFailed),
			"records_purged":  fmt.Sprintf("%d", report.RecordsPurged),
		},
		OccurredAt: j.clock.Now(),
	})
	if err != nil {
		j.logger.Warn().Err(err).Msg("cleanup summary notification failed")
	}
}

// RunOnce performs a full sweep and returns its report.
func (j *Janitor) RunOnce(ctx context.Context) *SweepReport {
	start := j.clock.Now()
	report := &SweepReport{}

	activeJobs := make(map[string]bool)
	for _, q := range j.queues {
		j.sweepQueue(ctx, q, report, activeJobs)
	}
	j.sweepOrphans(report, activeJobs)
	j.purgeExpired(report)

	report.Duration = j.clock.Since(start)
	j.cleanup.record(report)
	return report
}

// Totals returns the lifetime sweep totals.
func (j *Janitor) Totals() SweepTotals {
	return j.cleanup.Snapshot()
}

// ResetTotals zeroes the lifetime sweep totals.
func (j *Janitor) ResetTotals() {
	j.cleanup.Reset()
}

// sweepQueue handles the stale, failed and stalled entries of one queue.
// Every active JobID seen is recorded for the orphan pass.
func (j *Janitor) sweepQueue(ctx context.Context, q queue.Queue, report *SweepReport, activeJobs map[string]bool) {
	now := j.clock.Now()

	waiting, err := q.ListWaiting(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("queue %s: list waiting: %w", q.Name(), err))
	}
	for _, entry := range waiting {
		if now.Sub(entry.Timestamp) < j.config.StaleJobAge {
			activeJobs[entry.JobID] = true
			continue
		}
		if err := q.Remove(ctx, entry.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("queue %s: remove stale %s: %w", q.Name(), entry.ID, err))
			continue
		}
		j.failJob(entry.JobID, "job timed out waiting in queue", report)
		report.StaleRemoved++
		j.metrics.RecordEntryRemoved("stale")
	}

	failed, err := q.ListFailed(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("queue %s: list failed: %w", q.Name(), err))
	}
	for _, entry := range failed {
		if entry.AttemptsMade < j.config.RetryAttempts {
			if err := q.Retry(ctx, entry.ID); err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("queue %s: retry %s: %w", q.Name(), entry.ID, err))
				continue
			}
			activeJobs[entry.JobID] = true
			report.FailedRetried++
			continue
		}
		if err := q.Remove(ctx, entry.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("queue %s: remove failed %s: %w", q.Name(), entry.ID, err))
			continue
		}
		reason := entry.FailedReason
		if reason == "" {
			reason = "retry attempts exhausted"
		}
		j.failJob(entry.JobID, reason, report)
		report.FailedRemoved++
		j.metrics.RecordEntryRemoved("failed")
	}

	stalled, err := q.ListStalled(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("queue %s: list stalled: %w", q.Name(), err))
	}
	for _, entry := range stalled {
		if err := q.Remove(ctx, entry.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("queue %s: remove stalled %s: %w", q.Name(), entry.ID, err))
			continue
		}
		j.failJob(entry.JobID, "job stalled: worker stopped responding", report)
		report.StalledRemoved++
		j.metrics.RecordEntryRemoved("stalled")
	}
}

// sweepOrphans fails processing records that no queue entry backs anymore.
// Recently started jobs are left alone: their queue entry may simply not have
// been observed yet.
func (j *Janitor) sweepOrphans(report *SweepReport, activeJobs map[string]bool) {
	processing, err := j.store.ListJobsByStatus(models.JobProcessing)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list processing jobs: %w", err))
		return
	}
	cutoff := j.clock.Now().Add(-j.config.StaleJobAge)
	for _, job := range processing {
		if activeJobs[job.ID] {
			continue
		}
		started := job.StartedAt
		if started.IsZero() {
			started = job.UpdatedAt
		}
		if started.After(cutoff) {
			continue
		}
		j.failJob(job.ID, "orphaned: no active queue entry found", report)
		report.OrphanedFailed++
		j.metrics.RecordEntryRemoved("orphaned")
	}
}

// purgeExpired removes terminal jobs past retention, cost events first so a
// mid-purge crash never leaves events without their job record's context.
func (j *Janitor) purgeExpired(report *SweepReport) {
	jobs, err := j.store.ListJobs()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list jobs for retention: %w", err))
		return
	}

	cutoff := j.clock.Now().Add(-j.config.Retention)
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		reference := job.UpdatedAt
		if job.CompletedAt != nil {
			reference = *job.CompletedAt
		}
		if reference.After(cutoff) {
			continue
		}

		if err := j.store.DeleteEventsByJob(job.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("purge events for %s: %w", job.ID, err))
			continue
		}
		if err := j.store.DeleteJob(job.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("purge job %s: %w", job.ID, err))
			continue
		}
		report.RecordsPurged++
		j.metrics.RecordRecordPurged()
	}
}

// failJob marks a job failed with the given reason. Already terminal or
// missing jobs are left alone.
func (j *Janitor) failJob(jobID, reason string, report *SweepReport) {
	if jobID == "" {
		return
	}
	job, err := j.store.GetJob(jobID)
	if err != nil {
		if !errors.Is(err, models.ErrJobNotFound) {
			report.Errors = append(report.Errors, fmt.Errorf("load job %s: %w", jobID, err))
		}
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	now := j.clock.Now()
	job.Status = models.JobFailed
	job.ErrorDetails = reason
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := j.store.UpdateJob(job); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("fail job %s: %w", jobID, err))
		return
	}
	j.logger.Info().Str("job_id", jobID).Str("reason", reason).Msg("job failed by janitor")
}
