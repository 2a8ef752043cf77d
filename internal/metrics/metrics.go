// Package metrics holds the Prometheus collectors for sync runs, provider
// calls and report execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Metrics
	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4mirror_sync_items_total",
			Help: "Properties and websites processed by reconciliation, by outcome",
		},
		[]string{"entity", "outcome"}, // entity: property, website; outcome: created, updated, skipped, error
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4mirror_sync_runs_total",
			Help: "Reconciliation runs, by status",
		},
		[]string{"status"}, // "ok", "partial", "failed"
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ga4mirror_sync_run_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	LastSyncTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ga4mirror_last_sync_timestamp_seconds",
			Help: "Unix time the last reconciliation run completed",
		},
	)

	// Provider API Metrics
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4mirror_gateway_requests_total",
			Help: "Requests sent to the analytics APIs, by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ga4mirror_gateway_request_duration_seconds",
			Help:    "Latency of analytics API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	GatewayRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4mirror_gateway_retries_total",
			Help: "Retried analytics API requests, by endpoint",
		},
		[]string{"endpoint"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ga4mirror_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Report Metrics
	ReportSubRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4mirror_report_subrequests_total",
			Help: "Report sub-requests executed, by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	ReportPlanSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ga4mirror_report_plan_size",
			Help:    "Number of sub-requests a report was split into",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12},
		},
	)

	ReportCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4mirror_report_cache_lookups_total",
			Help: "Report cache lookups, by result",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)
)

// RecordSyncRun records the outcome and duration of one reconciliation run.
func RecordSyncRun(status string, duration time.Duration) {
	SyncRuns.WithLabelValues(status).Inc()
	SyncRunDuration.Observe(duration.Seconds())
	LastSyncTimestamp.SetToCurrentTime()
}

// RecordGatewayRequest records one provider API request.
func RecordGatewayRequest(endpoint, status string, duration time.Duration) {
	GatewayRequests.WithLabelValues(endpoint, status).Inc()
	GatewayRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
