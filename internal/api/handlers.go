// Package api provides the operational REST API.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/breaker"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/budget"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/cache"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/collector"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/janitor"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/ledger"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/storage"
)

// Handler handles API requests.
type Handler struct {
	store     storage.Store
	ledger    *ledger.Ledger
	enforcer  *budget.Enforcer
	breakers  *breaker.Registry
	cache     *cache.Manager
	janitor   *janitor.Janitor
	collector *collector.Collector
	logger    zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(store storage.Store, l *ledger.Ledger, e *budget.Enforcer, b *breaker.Registry, c *cache.Manager, j *janitor.Janitor, coll *collector.Collector, logger zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		ledger:    l,
		enforcer:  e,
		breakers:  b,
		cache:     c,
		janitor:   j,
		collector: coll,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// API Response types

// Response is a generic API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobRequest is the request body for creating a job.
type JobRequest struct {
	ID            string  `json:"id,omitempty"`
	BudgetLimit   float64 `json:"budget_limit"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// CostEventRequest is the request body for recording a cost event.
type CostEventRequest struct {
	EventType string  `json:"event_type"`
	Provider  string  `json:"provider"`
	Quantity  float64 `json:"quantity"`
	UnitCost  float64 `json:"unit_cost"`
}

// CostStatusResponse is the response for a job's cost status.
type CostStatusResponse struct {
	models.JobCostState
	BudgetStatus models.BudgetStatus `json:"budget_status"`
}

// ListJobsResponse is the response for listing jobs.
type ListJobsResponse struct {
	Jobs  []*models.JobRecord `json:"jobs"`
	Total int                 `json:"total"`
}

// Health check

// HealthCheck handles GET /health. The process reports degraded when any
// circuit breaker is open or close to opening.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	breakers := make(map[string]string)
	for name, stats := range h.breakers.Stats() {
		breakers[name] = stats.State.String()
		if !h.breakers.Get(name).Healthy() {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	h.writeJSON(w, httpStatus, Response{
		Success: httpStatus == http.StatusOK,
		Data: map[string]interface{}{
			"status":    status,
			"breakers":  breakers,
			"timestamp": time.Now().UTC(),
		},
	})
}

// Job handlers

// CreateJob handles POST /api/v1/jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Invalid JSON body")
		return
	}
	if req.BudgetLimit < 0 || req.EstimatedCost < 0 {
		h.writeError(w, http.StatusBadRequest, ErrCodeValidation, "budget_limit and estimated_cost must not be negative")
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	job := &models.JobRecord{
		ID:            id,
		Status:        models.JobPending,
		BudgetLimit:   req.BudgetLimit,
		EstimatedCost: req.EstimatedCost,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.store.CreateJob(job); err != nil {
		h.HandleError(w, err)
		return
	}
	h.ledger.RegisterJob(job.ID, job.BudgetLimit, job.EstimatedCost)

	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: job})
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: job})
}

// ListJobs handles GET /api/v1/jobs with an optional status filter.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	var jobs []*models.JobRecord
	var err error
	if status := r.URL.Query().Get("status"); status != "" {
		jobs, err = h.store.ListJobsByStatus(models.JobStatus(status))
	} else {
		jobs, err = h.store.ListJobs()
	}
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    ListJobsResponse{Jobs: jobs, Total: len(jobs)},
	})
}

// CancelJob handles POST /api/v1/jobs/{id}/cancel.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.GetJob(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	actual := job.ActualCost
	if state, ok := h.ledger.Status(id); ok {
		actual = state.ActualCost
	}
	if err := h.enforcer.Cancel(r.Context(), id, actual, job.BudgetLimit); err != nil {
		h.logger.Error().Err(err).Str("job_id", id).Msg("manual cancellation incomplete")
		h.writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "Cancellation incomplete")
		return
	}

	job, err = h.store.GetJob(id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: job})
}

// Cost handlers

// GetJobCost handles GET /api/v1/jobs/{id}/cost.
func (h *Handler) GetJobCost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, ok := h.ledger.Status(id)
	if !ok {
		// Fall back to the persisted record for jobs from previous runs.
		job, err := h.store.GetJob(id)
		if err != nil {
			h.HandleError(w, err)
			return
		}
		state = models.JobCostState{
			JobID:         job.ID,
			ActualCost:    job.ActualCost,
			EstimatedCost: job.EstimatedCost,
			BudgetLimit:   job.BudgetLimit,
			LastUpdate:    job.UpdatedAt,
		}
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: CostStatusResponse{
			JobCostState: state,
			BudgetStatus: h.enforcer.Evaluate(state.ActualCost, state.BudgetLimit),
		},
	})
}

// RecordCostEvent handles POST /api/v1/jobs/{id}/events.
func (h *Handler) RecordCostEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CostEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Invalid JSON body")
		return
	}
	if req.EventType == "" || req.Provider == "" {
		h.writeError(w, http.StatusBadRequest, ErrCodeValidation, "event_type and provider are required")
		return
	}
	if req.Quantity < 0 || req.UnitCost < 0 {
		h.writeError(w, http.StatusBadRequest, ErrCodeValidation, "quantity and unit_cost must not be negative")
		return
	}

	if _, err := h.store.GetJob(id); err != nil {
		h.HandleError(w, err)
		return
	}

	event, err := h.ledger.RecordEvent(id, req.EventType, req.Provider, req.Quantity, req.UnitCost)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: event})
}

// ListCostEvents handles GET /api/v1/jobs/{id}/events.
func (h *Handler) ListCostEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.ledger.Events(chi.URLParam(r, "id"))
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: events})
}

// Operational handlers

// BreakerStats handles GET /api/v1/breakers.
func (h *Handler) BreakerStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: h.breakers.Stats()})
}

// ResetBreakers handles POST /api/v1/breakers/reset.
func (h *Handler) ResetBreakers(w http.ResponseWriter, r *http.Request) {
	h.breakers.ResetAll()
	h.logger.Info().Msg("all breakers reset by operator")
	h.writeJSON(w, http.StatusOK, Response{Success: true})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: h.cache.Stats()})
}

// FlushCache handles POST /api/v1/cache/flush.
func (h *Handler) FlushCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Flush()
	h.logger.Info().Msg("cache flushed by operator")
	h.writeJSON(w, http.StatusOK, Response{Success: true})
}

// RunSweep handles POST /api/v1/janitor/sweep.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	report := h.janitor.RunOnce(r.Context())
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: report})
}

// JanitorTotals handles GET /api/v1/janitor/totals.
func (h *Handler) JanitorTotals(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: h.janitor.Totals()})
}

// ResetJanitorTotals handles POST /api/v1/janitor/totals/reset.
func (h *Handler) ResetJanitorTotals(w http.ResponseWriter, r *http.Request) {
	h.janitor.ResetTotals()
	h.writeJSON(w, http.StatusOK, Response{Success: true})
}

// Collection handlers

// CollectRequest is the request body for triggering a collection run.
type CollectRequest struct {
	Groups      []string `json:"groups"`
	WindowDays  int      `json:"window_days"`
	MaxPerGroup int      `json:"max_per_group"`
	Keywords    []string `json:"keywords,omitempty"`
}

// CollectResponse is the outcome of a collection run, with per-group errors
// rendered as strings.
type CollectResponse struct {
	Items  []models.CollectedItem `json:"items"`
	Errors []string               `json:"errors,omitempty"`
}

// Collect handles POST /api/v1/collect.
func (h *Handler) Collect(w http.ResponseWriter, r *http.Request) {
	if h.collector == nil {
		h.writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "No collector configured")
		return
	}

	var req CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "Invalid JSON body")
		return
	}
	if len(req.Groups) == 0 {
		h.writeError(w, http.StatusBadRequest, ErrCodeValidation, "groups is required")
		return
	}
	if req.WindowDays <= 0 {
		req.WindowDays = 30
	}
	if req.MaxPerGroup <= 0 {
		req.MaxPerGroup = 500
	}

	filter := collector.NewKeywordFilter(req.Keywords, nil)
	result := h.collector.Collect(r.Context(), req.Groups, req.WindowDays, filter, req.MaxPerGroup)

	resp := CollectResponse{Items: result.Items}
	for _, groupErr := range result.Errors {
		resp.Errors = append(resp.Errors, groupErr.Error())
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: resp})
}

// Helpers

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}
