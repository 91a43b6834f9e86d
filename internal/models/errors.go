package models

import "errors"

// Common errors.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobAlreadyExists  = errors.New("job already exists")
	ErrCircuitOpen       = errors.New("circuit breaker is open")
	ErrRateLimited       = errors.New("rate limited by upstream source")
	ErrBudgetExceeded    = errors.New("job budget exceeded")
	ErrSourceExhausted   = errors.New("all content sources failed")
	ErrQueueEntryMissing = errors.New("queue entry not found")
)
