package queue

import (
	"context"
	"sync"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// queueState is the lifecycle bucket an entry sits in.
type queueState int

const (
	stateWaiting queueState = iota
	stateFailed
	stateStalled
)

// MemoryQueue implements Queue with in-memory state. Useful for testing and
// for single-process development mode.
type MemoryQueue struct {
	name    string
	mu      sync.Mutex
	entries map[string]Entry
	states  map[string]queueState
}

// Compile-time check.
var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(name string) *MemoryQueue {
	return &MemoryQueue{
		name:    name,
		entries: make(map[string]Entry),
		states:  make(map[string]queueState),
	}
}

// Name identifies the queue.
func (q *MemoryQueue) Name() string {
	return q.name
}

// Enqueue adds an entry to the waiting set.
func (q *MemoryQueue) Enqueue(ctx context.Context, entry Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[entry.ID] = entry
	q.states[entry.ID] = stateWaiting
	return nil
}

// MarkFailed moves an entry to the failed set. Test/dev helper standing in
// for the runtime's own failure bookkeeping.
func (q *MemoryQueue) MarkFailed(id, reason string, attemptsMade int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if entry, found := q.entries[id]; found {
		entry.FailedReason = reason
		entry.AttemptsMade = attemptsMade
		q.entries[id] = entry
		q.states[id] = stateFailed
	}
}

// MarkStalled moves an entry to the stalled set. Test/dev helper.
func (q *MemoryQueue) MarkStalled(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, found := q.entries[id]; found {
		q.states[id] = stateStalled
	}
}

func (q *MemoryQueue) list(state queueState) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Entry
	for id, s := range q.states {
		if s == state {
			out = append(out, q.entries[id])
		}
	}
	return out
}

// ListWaiting returns entries waiting to be claimed.
func (q *MemoryQueue) ListWaiting(ctx context.Context) ([]Entry, error) {
	return q.list(stateWaiting), nil
}

// ListFailed returns entries whose processing failed.
func (q *MemoryQueue) ListFailed(ctx context.Context) ([]Entry, error) {
	return q.list(stateFailed), nil
}

// ListStalled returns entries claimed by workers that stopped heartbeating.
func (q *MemoryQueue) ListStalled(ctx context.Context) ([]Entry, error) {
	return q.list(stateStalled), nil
}

// Retry moves a failed entry back to the waiting set in place.
func (q *MemoryQueue) Retry(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, found := q.entries[id]
	if !found {
		return models.ErrQueueEntryMissing
	}
	entry.AttemptsMade++
	q.entries[id] = entry
	q.states[id] = stateWaiting
	return nil
}

// Remove deletes an entry from the queue entirely.
func (q *MemoryQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, found := q.entries[id]; !found {
		return models.ErrQueueEntryMissing
	}
	delete(q.entries, id)
	delete(q.states, id)
	return nil
}
