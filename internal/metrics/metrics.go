// Package metrics provides Prometheus metrics for the opportunity engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine. A nil *Metrics is
// valid everywhere: every record method no-ops, which keeps tests quiet.
type Metrics struct {
	registry *prometheus.Registry

	// Breaker metrics
	BreakerTransitions *prometheus.CounterVec

	// Collector metrics
	PagesFetched    *prometheus.CounterVec
	ItemsCollected  *prometheus.CounterVec
	GroupsDegraded  prometheus.Counter
	CollectDuration prometheus.Histogram

	// Cost metrics
	CostEventsTotal  *prometheus.CounterVec
	CostRecorded     *prometheus.CounterVec
	JobsCancelled    *prometheus.CounterVec

	// Janitor metrics
	SweepsTotal     prometheus.Counter
	SweepErrors     prometheus.Counter
	EntriesRemoved  *prometheus.CounterVec
	RecordsPurged   prometheus.Counter
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		BreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"name", "to"}),
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "pages_fetched_total",
			Help:      "Pages fetched from content sources.",
		}, []string{"source"}),
		ItemsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "items_collected_total",
			Help:      "Content items that passed the keyword filter.",
		}, []string{"group"}),
		GroupsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "groups_degraded_total",
			Help:      "Group collections that switched to the fallback source.",
		}),
		CollectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "engine",
			Name:      "collect_duration_seconds",
			Help:      "Duration of a full collection run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		CostEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "cost_events_total",
			Help:      "Billable cost events recorded.",
		}, []string{"provider", "event_type"}),
		CostRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "cost_recorded_dollars_total",
			Help:      "Total cost recorded, in dollars.",
		}, []string{"provider"}),
		JobsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "jobs_cancelled_total",
			Help:      "Jobs cancelled by the budget enforcer.",
		}, []string{"reason"}),
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "janitor_sweeps_total",
			Help:      "Janitor sweeps completed.",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "janitor_sweep_errors_total",
			Help:      "Errors accumulated across janitor sweeps.",
		}),
		EntriesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "janitor_entries_removed_total",
			Help:      "Queue entries removed by the janitor.",
		}, []string{"kind"}),
		RecordsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "janitor_records_purged_total",
			Help:      "Job records purged by the retention sweep.",
		}),
	}

	registry.MustRegister(
		m.BreakerTransitions,
		m.PagesFetched,
		m.ItemsCollected,
		m.GroupsDegraded,
		m.CollectDuration,
		m.CostEventsTotal,
		m.CostRecorded,
		m.JobsCancelled,
		m.SweepsTotal,
		m.SweepErrors,
		m.EntriesRemoved,
		m.RecordsPurged,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordBreakerTransition counts a breaker state change.
func (m *Metrics) RecordBreakerTransition(name, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(name, to).Inc()
}

// RecordPageFetched counts one fetched page.
func (m *Metrics) RecordPageFetched(source string) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(source).Inc()
}

// RecordItemsCollected counts filtered items for a group.
func (m *Metrics) RecordItemsCollected(group string, n int) {
	if m == nil {
		return
	}
	m.ItemsCollected.WithLabelValues(group).Add(float64(n))
}

// RecordGroupDegraded counts a primary-to-fallback switch.
func (m *Metrics) RecordGroupDegraded() {
	if m == nil {
		return
	}
	m.GroupsDegraded.Inc()
}

// ObserveCollectDuration records one collection run's duration.
func (m *Metrics) ObserveCollectDuration(seconds float64) {
	if m == nil {
		return
	}
	m.CollectDuration.Observe(seconds)
}

// RecordCostEvent counts one billable event and its cost.
func (m *Metrics) RecordCostEvent(provider, eventType string, totalCost float64) {
	if m == nil {
		return
	}
	m.CostEventsTotal.WithLabelValues(provider, eventType).Inc()
	m.CostRecorded.WithLabelValues(provider).Add(totalCost)
}

// RecordJobCancelled counts one enforced cancellation.
func (m *Metrics) RecordJobCancelled(reason string) {
	if m == nil {
		return
	}
	m.JobsCancelled.WithLabelValues(reason).Inc()
}

// RecordSweep counts one completed sweep and its error count.
func (m *Metrics) RecordSweep(errs int) {
	if m == nil {
		return
	}
	m.SweepsTotal.Inc()
	m.SweepErrors.Add(float64(errs))
}

// RecordEntryRemoved counts a queue entry removed for the given reason.
func (m *Metrics) RecordEntryRemoved(kind string) {
	if m == nil {
		return
	}
	m.EntriesRemoved.WithLabelValues(kind).Inc()
}

// RecordRecordPurged counts one purged job record.
func (m *Metrics) RecordRecordPurged() {
	if m == nil {
		return
	}
	m.RecordsPurged.Inc()
}
