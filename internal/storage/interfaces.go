// Package storage provides persistence interfaces and implementations for
// job records and cost events.
package storage

import (
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// JobStore provides job record persistence operations.
type JobStore interface {
	// CreateJob stores a new job record. Returns ErrJobAlreadyExists if the ID exists.
	CreateJob(job *models.JobRecord) error
	// UpdateJob updates an existing job record. Returns ErrJobNotFound if missing.
	UpdateJob(job *models.JobRecord) error
	// GetJob retrieves a job record by ID. Returns ErrJobNotFound if missing.
	GetJob(id string) (*models.JobRecord, error)
	// DeleteJob deletes a job record by ID. Returns ErrJobNotFound if missing.
	DeleteJob(id string) error
	// ListJobs returns all job records.
	ListJobs() ([]*models.JobRecord, error)
	// ListJobsByStatus returns all job records in the given status.
	ListJobsByStatus(status models.JobStatus) ([]*models.JobRecord, error)
}

// EventStore provides append-only cost event persistence.
// Events are immutable once written; the only delete path is the bulk
// per-job purge used by the retention sweep.
type EventStore interface {
	// AppendEvent stores a cost event.
	AppendEvent(event *models.CostEvent) error
	// ListEvents returns all cost events for a job, oldest first.
	ListEvents(jobID string) ([]*models.CostEvent, error)
	// SumCostByJob returns the sum of TotalCost over all events for a job.
	SumCostByJob(jobID string) (float64, error)
	// DeleteEventsByJob removes all cost events for a job.
	DeleteEventsByJob(jobID string) error
}

// Store combines all storage interfaces.
type Store interface {
	JobStore
	EventStore

	// Close closes the store and releases resources.
	Close() error
}
