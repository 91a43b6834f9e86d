package models

import "time"

// CostEvent is one immutable billing record for a single external call.
// Events are append-only: never updated or deleted individually, only
// bulk-purged by the retention sweep.
type CostEvent struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	EventType  string    `json:"event_type"`
	Provider   string    `json:"provider"`
	Quantity   float64   `json:"quantity"`
	UnitCost   float64   `json:"unit_cost"`
	TotalCost  float64   `json:"total_cost"`
	OccurredAt time.Time `json:"occurred_at"`
}

// JobCostState is the derived running cost for one job. ActualCost is
// maintained incrementally from cost events and only recomputed from the
// event sum during reconciliation.
type JobCostState struct {
	JobID         string    `json:"job_id"`
	ActualCost    float64   `json:"actual_cost"`
	EstimatedCost float64   `json:"estimated_cost"`
	BudgetLimit   float64   `json:"budget_limit"`
	LastUpdate    time.Time `json:"last_update"`
}
