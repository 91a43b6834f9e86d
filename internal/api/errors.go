// Package api provides error handling utilities for the REST API.
package api

import (
	"errors"
	"net/http"

	"github.com/Mellox11/saas-opportunity-intelligence-sub001/internal/models"
)

// APIError represents a structured API error.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Common API error codes.
const (
	ErrCodeInvalidJSON   = "INVALID_JSON"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeBudget        = "BUDGET_EXCEEDED"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Predefined API errors.
var (
	ErrJobNotFound = &APIError{
		HTTPStatus: http.StatusNotFound,
		Code:       ErrCodeNotFound,
		Message:    "Job not found",
	}
	ErrJobAlreadyExists = &APIError{
		HTTPStatus: http.StatusConflict,
		Code:       ErrCodeAlreadyExists,
		Message:    "Job already exists",
	}
	ErrBudgetExceeded = &APIError{
		HTTPStatus: http.StatusPaymentRequired,
		Code:       ErrCodeBudget,
		Message:    "Job budget exceeded",
	}
	ErrCircuitOpen = &APIError{
		HTTPStatus: http.StatusServiceUnavailable,
		Code:       ErrCodeUnavailable,
		Message:    "Dependency circuit is open",
	}
	ErrInternalError = &APIError{
		HTTPStatus: http.StatusInternalServerError,
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
	}
)

// MapDomainError maps domain/model errors to API errors.
func MapDomainError(err error) *APIError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, models.ErrJobNotFound):
		return ErrJobNotFound
	case errors.Is(err, models.ErrJobAlreadyExists):
		return ErrJobAlreadyExists
	case errors.Is(err, models.ErrBudgetExceeded):
		return ErrBudgetExceeded
	case errors.Is(err, models.ErrCircuitOpen):
		return ErrCircuitOpen
	default:
		return ErrInternalError
	}
}

// WriteAPIError writes an API error response.
func (h *Handler) WriteAPIError(w http.ResponseWriter, err *APIError) {
	h.writeJSON(w, err.HTTPStatus, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    err.Code,
			Message: err.Message,
		},
	})
}

// HandleError maps a domain error to an API error and writes the response.
// Returns true if an error was handled, false if err was nil.
func (h *Handler) HandleError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	apiErr := MapDomainError(err)
	if apiErr.Code == ErrCodeInternalError {
		h.logger.Error().Err(err).Msg("unexpected error")
	}
	h.WriteAPIError(w, apiErr)
	return true
}
