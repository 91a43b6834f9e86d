// Package api provides the REST API router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	// MetricsHandler serves the Prometheus scrape endpoint (optional).
	MetricsHandler http.Handler
	// MetricsPath is the scrape path, defaulting to /metrics.
	MetricsPath string
}

// NewRouter creates a new API router.
func NewRouter(handler *Handler, logger zerolog.Logger) *chi.Mux {
	return NewRouterWithConfig(handler, logger, RouterConfig{})
}

// NewRouterWithConfig creates a new API router with configuration.
func NewRouterWithConfig(handler *Handler, logger zerolog.Logger, config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", handler.HealthCheck)

	// Prometheus metrics
	if config.MetricsHandler != nil {
		path := config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, config.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", handler.ListJobs)
			r.Post("/", handler.CreateJob)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetJob)
				r.Post("/cancel", handler.CancelJob)
				r.Get("/cost", handler.GetJobCost)
				r.Get("/events", handler.ListCostEvents)
				r.Post("/events", handler.RecordCostEvent)
			})
		})

		r.Route("/breakers", func(r chi.Router) {
			r.Get("/", handler.BreakerStats)
			r.Post("/reset", handler.ResetBreakers)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", handler.CacheStats)
			r.Post("/flush", handler.FlushCache)
		})

		r.Route("/janitor", func(r chi.Router) {
			r.Post("/sweep", handler.RunSweep)
			r.Get("/totals", handler.JanitorTotals)
			r.Post("/totals/reset", handler.ResetJanitorTotals)
		})

		r.Post("/collect", handler.Collect)
	})

	return r
}
