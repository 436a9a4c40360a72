// Package metrics holds the Prometheus collectors of the role assignment API
// and the bulk assignment engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts served requests by route template and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roleapi_http_requests_total",
			Help: "Total number of HTTP requests served by the role assignment API",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by route template
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roleapi_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BulkOutcomes counts per-user outcomes of bulk assign/remove runs
	BulkOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roleapi_bulk_outcomes_total",
			Help: "Per-user outcomes of bulk role operations",
		},
		[]string{"action", "outcome"},
	)

	// BulkDuration observes the wall time of a whole bulk run
	BulkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roleapi_bulk_duration_seconds",
			Help:    "Duration of bulk role operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	// AttributionChanges counts attributions created and deleted by the server
	AttributionChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roleapi_attribution_changes_total",
			Help: "Role attributions created or deleted",
		},
		[]string{"change"},
	)
)

// Bulk outcome label values
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Attribution change label values
const (
	ChangeCreated = "created"
	ChangeDeleted = "deleted"
)

// RecordBulk adds the outcome counts of one bulk run
func RecordBulk(action string, succeeded, skipped, failed int, seconds float64) {
	BulkOutcomes.WithLabelValues(action, OutcomeSucceeded).Add(float64(succeeded))
	BulkOutcomes.WithLabelValues(action, OutcomeSkipped).Add(float64(skipped))
	BulkOutcomes.WithLabelValues(action, OutcomeFailed).Add(float64(failed))
	BulkDuration.WithLabelValues(action).Observe(seconds)
}
