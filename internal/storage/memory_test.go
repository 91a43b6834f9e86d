package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// testStoreContract runs the shared Store behavior against any implementation.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	job := &models.JobRecord{
		ID:          "job-1",
		Status:      models.JobPending,
		BudgetLimit: 25,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := s.CreateJob(job); !errors.Is(err, models.ErrJobAlreadyExists) {
		t.Errorf("expected ErrJobAlreadyExists, got %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.BudgetLimit != 25 {
		t.Errorf("expected budget 25, got %v", got.BudgetLimit)
	}

	got.Status = models.JobProcessing
	got.StartedAt = now
	if err := s.UpdateJob(got); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	processing, err := s.ListJobsByStatus(models.JobProcessing)
	if err != nil {
		t.Fatalf("ListJobsByStatus failed: %v", err)
	}
	if len(processing) != 1 || processing[0].ID != "job-1" {
		t.Errorf("expected job-1 in processing, got %v", processing)
	}

	if _, err := s.GetJob("missing"); !errors.Is(err, models.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := s.UpdateJob(&models.JobRecord{ID: "missing"}); !errors.Is(err, models.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound on update, got %v", err)
	}

	// Cost events: append, list ordering, aggregate, bulk purge.
	for i, cost := range []float64{0.012, 0.5, 1.25} {
		event := &models.CostEvent{
			ID:         string(rune('a' + i)),
			JobID:      "job-1",
			EventType:  "classification",
			Provider:   "openai",
			Quantity:   100,
			UnitCost:   cost / 100,
			TotalCost:  cost,
			OccurredAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendEvent(event); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	events, err := s.ListEvents("job-1")
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if !events[0].OccurredAt.Before(events[2].OccurredAt) {
		t.Error("expected events ordered oldest first")
	}

	sum, err := s.SumCostByJob("job-1")
	if err != nil {
		t.Fatalf("SumCostByJob failed: %v", err)
	}
	if sum != 0.012+0.5+1.25 {
		t.Errorf("expected sum 1.762, got %v", sum)
	}

	if err := s.DeleteEventsByJob("job-1"); err != nil {
		t.Fatalf("DeleteEventsByJob failed: %v", err)
	}
	events, err = s.ListEvents("job-1")
	if err != nil {
		t.Fatalf("ListEvents after purge failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events after purge, got %d", len(events))
	}

	if err := s.DeleteJob("job-1"); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}
	if err := s.DeleteJob("job-1"); !errors.Is(err, models.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound on double delete, got %v", err)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStoreContract(t, s)
}

func TestMemoryStore_CopiesOnReturn(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	job := &models.JobRecord{ID: "job-1", Status: models.JobPending}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	got, _ := s.GetJob("job-1")
	got.Status = models.JobFailed

	again, _ := s.GetJob("job-1")
	if again.Status != models.JobPending {
		t.Error("mutating a returned record must not affect the stored copy")
	}
}
