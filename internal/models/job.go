// Package models defines the core data structures for the opportunity engine.
package models

import "time"

// JobStatus represents the lifecycle state of an analysis job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal returns true if the job is in a terminal state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobRecord is the persistent record for a single analysis job.
//
// The core owns only Status, ErrorDetails and the cost fields; everything
// else about a job (its report, its owner) belongs to external collaborators.
type JobRecord struct {
	ID            string     `json:"id"`
	Status        JobStatus  `json:"status"`
	BudgetLimit   float64    `json:"budget_limit"`
	EstimatedCost float64    `json:"estimated_cost"`
	ActualCost    float64    `json:"actual_cost"`
	StartedAt     time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ErrorDetails  string     `json:"error_details,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BudgetStatus classifies a job's spend against its budget limit.
type BudgetStatus string

const (
	BudgetWithin      BudgetStatus = "within_budget"
	BudgetApproaching BudgetStatus = "approaching"
	BudgetExceeded    BudgetStatus = "exceeded"
)
