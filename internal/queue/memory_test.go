package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

func TestMemoryQueue_EnqueueAndList(t *testing.T) {
	q := NewMemoryQueue("analysis")
	ctx := context.Background()

	entry := Entry{ID: "e1", JobID: "job-1", Timestamp: time.Now()}
	if err := q.Enqueue(ctx, entry); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	waiting, err := q.ListWaiting(ctx)
	if err != nil {
		t.Fatalf("ListWaiting failed: %v", err)
	}
	if len(waiting) != 1 || waiting[0].JobID != "job-1" {
		t.Errorf("expected 1 waiting entry for job-1, got %v", waiting)
	}
}

func TestMemoryQueue_FailedAndRetry(t *testing.T) {
	q := NewMemoryQueue("analysis")
	ctx := context.Background()

	_ = q.Enqueue(ctx, Entry{ID: "e1", JobID: "job-1"})
	q.MarkFailed("e1", "worker crashed", 1)

	failed, _ := q.ListFailed(ctx)
	if len(failed) != 1 || failed[0].FailedReason != "worker crashed" {
		t.Fatalf("expected failed entry with reason, got %v", failed)
	}

	if err := q.Retry(ctx, "e1"); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	waiting, _ := q.ListWaiting(ctx)
	if len(waiting) != 1 {
		t.Fatal("expected entry back in waiting after retry")
	}
	if waiting[0].AttemptsMade != 2 {
		t.Errorf("expected attemptsMade incremented to 2, got %d", waiting[0].AttemptsMade)
	}

	failed, _ = q.ListFailed(ctx)
	if len(failed) != 0 {
		t.Error("expected failed set empty after retry")
	}
}

func TestMemoryQueue_StalledAndRemove(t *testing.T) {
	q := NewMemoryQueue("analysis")
	ctx := context.Background()

	_ = q.Enqueue(ctx, Entry{ID: "e1", JobID: "job-1"})
	q.MarkStalled("e1")

	stalled, _ := q.ListStalled(ctx)
	if len(stalled) != 1 {
		t.Fatal("expected 1 stalled entry")
	}

	if err := q.Remove(ctx, "e1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	stalled, _ = q.ListStalled(ctx)
	if len(stalled) != 0 {
		t.Error("expected stalled set empty after remove")
	}

	if err := q.Remove(ctx, "e1"); !errors.Is(err, models.ErrQueueEntryMissing) {
		t.Errorf("expected ErrQueueEntryMissing, got %v", err)
	}
}

func TestMemoryQueue_RetryMissing(t *testing.T) {
	q := NewMemoryQueue("analysis")
	if err := q.Retry(context.Background(), "nope"); !errors.Is(err, models.ErrQueueEntryMissing) {
		t.Errorf("expected ErrQueueEntryMissing, got %v", err)
	}
}
