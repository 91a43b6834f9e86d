package storage

import (
	"testing"
	"time"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open badger store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBadgerStore_Contract(t *testing.T) {
	testStoreContract(t, newTestBadgerStore(t))
}

func TestBadgerStore_EventsIsolatedPerJob(t *testing.T) {
	s := newTestBadgerStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, jobID := range []string{"job-a", "job-b"} {
		event := &models.CostEvent{
			ID:         "ev-" + jobID,
			JobID:      jobID,
			EventType:  "fetch",
			Provider:   "reddit",
			Quantity:   1,
			UnitCost:   0.001,
			TotalCost:  0.001,
			OccurredAt: now,
		}
		if err := s.AppendEvent(event); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	if err := s.DeleteEventsByJob("job-a"); err != nil {
		t.Fatalf("DeleteEventsByJob failed: %v", err)
	}

	events, err := s.ListEvents("job-b")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("purging job-a must not touch job-b events, got %d", len(events))
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	job := &models.JobRecord{ID: "job-1", Status: models.JobCompleted, ActualCost: 3.5}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob after reopen failed: %v", err)
	}
	if got.ActualCost != 3.5 {
		t.Errorf("expected cost 3.5 after reopen, got %v", got.ActualCost)
	}
}
