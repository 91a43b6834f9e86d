package storage

import (
	"sort"
	"sync"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// MemoryStore implements the Store interface using in-memory data structures.
// Useful for testing and development.
type MemoryStore struct {
	jobs   map[string]*models.JobRecord
	events map[string][]*models.CostEvent // jobID -> events
	mu     sync.RWMutex
}

// Compile-time check that MemoryStore implements the full Store interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*models.JobRecord),
		events: make(map[string][]*models.CostEvent),
	}
}

// CreateJob stores a new job record.
func (s *MemoryStore) CreateJob(job *models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return models.ErrJobAlreadyExists
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// UpdateJob updates an existing job record.
func (s *MemoryStore) UpdateJob(job *models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return models.ErrJobNotFound
	}

	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// GetJob retrieves a job record by ID.
func (s *MemoryStore) GetJob(id string) (*models.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, models.ErrJobNotFound
	}

	jobCopy := *job
	return &jobCopy, nil
}

// DeleteJob deletes a job record by ID.
func (s *MemoryStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return models.ErrJobNotFound
	}

	delete(s.jobs, id)
	return nil
}

// ListJobs returns all job records.
func (s *MemoryStore) ListJobs() ([]*models.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.JobRecord, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// ListJobsByStatus returns all job records in the given status.
func (s *MemoryStore) ListJobsByStatus(status models.JobStatus) ([]*models.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*models.JobRecord
	for _, job := range s.jobs {
		if job.Status == status {
			jobCopy := *job
			jobs = append(jobs, &jobCopy)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// AppendEvent stores a cost event.
func (s *MemoryStore) AppendEvent(event *models.CostEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *event
	s.events[event.JobID] = append(s.events[event.JobID], &eventCopy)
	return nil
}

// ListEvents returns all cost events for a job, oldest first.
func (s *MemoryStore) ListEvents(jobID string) ([]*models.CostEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*models.CostEvent, 0, len(s.events[jobID]))
	for _, event := range s.events[jobID] {
		eventCopy := *event
		events = append(events, &eventCopy)
	}
	return events, nil
}

// SumCostByJob returns the sum of TotalCost over all events for a job.
func (s *MemoryStore) SumCostByJob(jobID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for _, event := range s.events[jobID] {
		sum += event.TotalCost
	}
	return sum, nil
}

// DeleteEventsByJob removes all cost events for a job.
func (s *MemoryStore) DeleteEventsByJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.events, jobID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
