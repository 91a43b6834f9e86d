package janitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/notify"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/queue"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/storage"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/pkg/clock"
)

var sweepNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestJanitor(t *testing.T, config *Config) (*Janitor, storage.Store, *queue.MemoryQueue, *clock.MockClock) {
	t.Helper()
	mock := clock.NewMock(sweepNow)
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	q := queue.NewMemoryQueue("analysis")
	j := New(config, store, []queue.Queue{q}, nil, mock, zerolog.Nop(), nil)
	return j, store, q, mock
}

func seedProcessing(t *testing.T, store storage.JobStore, id string) {
	t.Helper()
	if err := store.CreateJob(&models.JobRecord{
		ID:        id,
		Status:    models.JobProcessing,
		CreatedAt: sweepNow.Add(-time.Hour),
		UpdatedAt: sweepNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
}

func TestSweepRemovesStaleWaiting(t *testing.T) {
	j, store, q, _ := newTestJanitor(t, nil)
	seedProcessing(t, store, "stale")
	seedProcessing(t, store, "fresh")

	ctx := context.Background()
	q.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "stale", Timestamp: sweepNow.Add(-25 * time.Hour)})
	q.Enqueue(ctx, queue.Entry{ID: "e2", JobID: "fresh", Timestamp: sweepNow.Add(-time.Hour)})

	report := j.RunOnce(ctx)
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if report.StaleRemoved != 1 {
		t.Fatalf("expected 1 stale removal, got %d", report.StaleRemoved)
	}

	job, _ := store.GetJob("stale")
	if job.Status != models.JobFailed {
		t.Errorf("expected stale job failed, got %v", job.Status)
	}
	if job.ErrorDetails == "" {
		t.Error("expected failure reason recorded")
	}

	fresh, _ := store.GetJob("fresh")
	if fresh.Status != models.JobProcessing {
		t.Errorf("fresh job touched: %v", fresh.Status)
	}
	waiting, _ := q.ListWaiting(ctx)
	if len(waiting) != 1 {
		t.Errorf("expected 1 waiting entry left, got %d", len(waiting))
	}
}

func TestSweepRetriesFailedUnderBudget(t *testing.T) {
	j, store, q, _ := newTestJanitor(t, nil)
	seedProcessing(t, store, "job1")

	ctx := context.Background()
	q.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "job1", Timestamp: sweepNow})
	q.MarkFailed("e1", "worker crashed", 1)

	report := j.RunOnce(ctx)
	if report.FailedRetried != 1 {
		t.Fatalf("expected 1 retry, got %d", report.FailedRetried)
	}

	waiting, _ := q.ListWaiting(ctx)
	if len(waiting) != 1 {
		t.Fatalf("expected entry back in waiting, got %d", len(waiting))
	}
	if waiting[0].AttemptsMade != 2 {
		t.Errorf("expected attempt count bumped to 2, got %d", waiting[0].AttemptsMade)
	}
	job, _ := store.GetJob("job1")
	if job.Status != models.JobProcessing {
		t.Errorf("retried job must stay processing, got %v", job.Status)
	}
}

func TestSweepRemovesFailedAtBudget(t *testing.T) {
	j, store, q, _ := newTestJanitor(t, nil)
	seedProcessing(t, store, "job1")

	ctx := context.Background()
	q.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "job1", Timestamp: sweepNow})
	q.MarkFailed("e1", "worker crashed", 3)

	report := j.RunOnce(ctx)
	if report.FailedRemoved != 1 {
		t.Fatalf("expected 1 failed removal, got %d", report.FailedRemoved)
	}

	job, _ := store.GetJob("job1")
	if job.Status != models.JobFailed {
		t.Fatalf("expected job failed, got %v", job.Status)
	}
	if job.ErrorDetails != "worker crashed" {
		t.Errorf("expected queue reason carried over, got %q", job.ErrorDetails)
	}
}

func TestSweepRemovesStalled(t *testing.T) {
	j, store, q, _ := newTestJanitor(t, nil)
	seedProcessing(t, store, "job1")

	ctx := context.Background()
	q.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "job1", Timestamp: sweepNow})
	q.MarkStalled("e1")

	report := j.RunOnce(ctx)
	if report.StalledRemoved != 1 {
		t.Fatalf("expected 1 stalled removal, got %d", report.StalledRemoved)
	}
	job, _ := store.GetJob("job1")
	if job.Status != models.JobFailed {
		t.Errorf("expected job failed, got %v", job.Status)
	}
}

func TestSweepFailsOrphanedProcessing(t *testing.T) {
	j, store, q, _ := newTestJanitor(t, nil)
	old := sweepNow.Add(-25 * time.Hour)
	for _, job := range []*models.JobRecord{
		{ID: "orphan", Status: models.JobProcessing, StartedAt: old, CreatedAt: old, UpdatedAt: old},
		{ID: "backed", Status: models.JobProcessing, StartedAt: old, CreatedAt: old, UpdatedAt: old},
		{ID: "young", Status: models.JobProcessing, StartedAt: sweepNow.Add(-time.Hour), CreatedAt: sweepNow, UpdatedAt: sweepNow},
	} {
		if err := store.CreateJob(job); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	ctx := context.Background()
	q.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "backed", Timestamp: sweepNow})

	report := j.RunOnce(ctx)
	if report.OrphanedFailed != 1 {
		t.Fatalf("expected 1 orphan failed, got %d", report.OrphanedFailed)
	}

	orphan, _ := store.GetJob("orphan")
	if orphan.Status != models.JobFailed {
		t.Errorf("expected orphan failed, got %v", orphan.Status)
	}
	backed, _ := store.GetJob("backed")
	if backed.Status != models.JobProcessing {
		t.Errorf("backed job touched: %v", backed.Status)
	}
	young, _ := store.GetJob("young")
	if young.Status != models.JobProcessing {
		t.Errorf("recently started job touched: %v", young.Status)
	}
}

func TestSweepPurgesExpiredRecords(t *testing.T) {
	j, store, _, _ := newTestJanitor(t, nil)

	old := sweepNow.Add(-31 * 24 * time.Hour)
	recent := sweepNow.Add(-2 * 24 * time.Hour)

	for _, job := range []*models.JobRecord{
		{ID: "ancient", Status: models.JobCompleted, CompletedAt: &old, UpdatedAt: old, CreatedAt: old},
		{ID: "recent", Status: models.JobCompleted, CompletedAt: &recent, UpdatedAt: recent, CreatedAt: recent},
		{ID: "old-but-running", Status: models.JobProcessing, CreatedAt: old, UpdatedAt: old},
	} {
		if err := store.CreateJob(job); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	if err := store.AppendEvent(&models.CostEvent{ID: "ev1", JobID: "ancient", TotalCost: 1, OccurredAt: old}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	report := j.RunOnce(context.Background())
	if report.RecordsPurged != 1 {
		t.Fatalf("expected 1 purge, got %d", report.RecordsPurged)
	}

	if _, err := store.GetJob("ancient"); err == nil {
		t.Error("expected ancient job purged")
	}
	events, _ := store.ListEvents("ancient")
	if len(events) != 0 {
		t.Errorf("expected events purged, got %d", len(events))
	}
	if _, err := store.GetJob("recent"); err != nil {
		t.Error("recent job purged too early")
	}
	if _, err := store.GetJob("old-but-running"); err != nil {
		t.Error("non-terminal job purged")
	}
}

func TestSweepIsolatesQueueFailures(t *testing.T) {
	mock := clock.NewMock(sweepNow)
	store := storage.NewMemoryStore()
	defer store.Close()

	broken := &failingQueue{name: "broken"}
	healthy := queue.NewMemoryQueue("healthy")
	ctx := context.Background()
	healthy.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "job1", Timestamp: sweepNow.Add(-25 * time.Hour)})

	j := New(nil, store, []queue.Queue{broken, healthy}, nil, mock, zerolog.Nop(), nil)
	report := j.RunOnce(ctx)

	if len(report.Errors) != 3 {
		t.Errorf("expected 3 listing errors from broken queue, got %v", report.Errors)
	}
	if report.StaleRemoved != 1 {
		t.Errorf("healthy queue not swept: %+v", report)
	}
}

func TestCleanupTotalsAccumulateAndReset(t *testing.T) {
	j, store, q, _ := newTestJanitor(t, nil)
	seedProcessing(t, store, "stale")

	ctx := context.Background()
	q.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "stale", Timestamp: sweepNow.Add(-25 * time.Hour)})

	j.RunOnce(ctx)
	j.RunOnce(ctx)

	totals := j.Totals()
	if totals.Sweeps != 2 {
		t.Errorf("expected 2 sweeps, got %d", totals.Sweeps)
	}
	if totals.StaleRemoved != 1 {
		t.Errorf("expected 1 stale removal total, got %d", totals.StaleRemoved)
	}

	j.ResetTotals()
	if totals := j.Totals(); totals.Sweeps != 0 {
		t.Errorf("expected totals reset, got %+v", totals)
	}
}

func TestStartStopSweepsOnTicks(t *testing.T) {
	config := DefaultConfig()
	config.Interval = time.Minute
	mock := clock.NewMock(sweepNow)
	store := storage.NewMemoryStore()
	defer store.Close()
	q := queue.NewMemoryQueue("analysis")
	recorder := &recordingNotifier{}
	j := New(config, store, []queue.Queue{q}, recorder, mock, zerolog.Nop(), nil)
	seedProcessing(t, store, "stale")

	ctx := context.Background()
	q.Enqueue(ctx, queue.Entry{ID: "e1", JobID: "stale", Timestamp: sweepNow.Add(-25 * time.Hour)})

	j.Start(ctx)

	mock.Advance(time.Minute)
	deadline := time.After(2 * time.Second)
	for {
		waiting, _ := q.ListWaiting(ctx)
		if len(waiting) == 0 {
			break
		}
		select {
		case <-deadline:
			j.Stop()
			t.Fatal("sweep never ran after tick")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	j.Stop()
	events := recorder.events()
	if len(events) == 0 {
		t.Fatal("expected a cleanup summary notification")
	}
	if events[0].Kind != notify.KindCleanupSummary {
		t.Errorf("unexpected notification kind %q", events[0].Kind)
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Event
}

func (n *recordingNotifier) Send(_ context.Context, event notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, event)
	return nil
}

func (n *recordingNotifier) events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.sent...)
}

var errBroken = errors.New("queue backend down")

type failingQueue struct {
	name string
}

func (q *failingQueue) Name() string { return q.name }

func (q *failingQueue) Enqueue(context.Context, queue.Entry) error { return errBroken }

func (q *failingQueue) ListWaiting(context.Context) ([]queue.Entry, error) { return nil, errBroken }

func (q *failingQueue) ListFailed(context.Context) ([]queue.Entry, error) { return nil, errBroken }

func (q *failingQueue) ListStalled(context.Context) ([]queue.Entry, error) { return nil, errBroken }

func (q *failingQueue) Retry(context.Context, string) error { return errBroken }

func (q *failingQueue) Remove(context.Context, string) error { return errBroken }
