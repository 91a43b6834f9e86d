// Package queue abstracts the external job-queue runtime. The core only
// observes and reconciles queue state; retry/ack semantics stay with the
// runtime itself.
package queue

import (
	"context"
	"time"
)

// Entry is the view of one queue record the core needs.
type Entry struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	Timestamp    time.Time `json:"timestamp"`
	AttemptsMade int       `json:"attempts_made"`
	FailedReason string    `json:"failed_reason,omitempty"`
}

// Queue is the consumed surface of one named queue in the job runtime.
type Queue interface {
	// Name identifies the queue.
	Name() string
	// Enqueue adds an entry to the waiting set.
	Enqueue(ctx context.Context, entry Entry) error
	// ListWaiting returns entries waiting to be claimed.
	ListWaiting(ctx context.Context) ([]Entry, error)
	// ListFailed returns entries whose processing failed.
	ListFailed(ctx context.Context) ([]Entry, error)
	// ListStalled returns entries claimed by workers that stopped heartbeating.
	ListStalled(ctx context.Context) ([]Entry, error)
	// Retry moves a failed entry back to the waiting set in place.
	Retry(ctx context.Context, id string) error
	// Remove deletes an entry from the queue entirely.
	Remove(ctx context.Context, id string) error
}
