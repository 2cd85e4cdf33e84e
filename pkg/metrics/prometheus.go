package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_webserver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "demo_webserver_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demo_webserver_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "endpoint"},
	)

	// Batch metrics
	BatchRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "demo_webserver_batch_runs_total",
			Help: "Total number of completed batches",
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demo_webserver_batch_duration_seconds",
			Help:    "Time from first dispatch until every request of a batch finished",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	BatchDuplicates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demo_webserver_batch_duplicates",
			Help:    "Number of distinct values echoed more than once per batch",
			Buckets: prometheus.LinearBuckets(0, 1, 12),
		},
	)

	// Outbound echo requests
	OutboundRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_webserver_outbound_requests_total",
			Help: "Total number of echo requests by outcome",
		},
		[]string{"outcome"}, // success, transport_error, status_error, parse_error
	)

	OutboundRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "demo_webserver_outbound_request_duration_seconds",
			Help:    "Duration of echo requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)

	OutboundRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demo_webserver_outbound_requests_in_flight",
			Help: "Number of echo requests currently awaiting completion",
		},
	)

	// Configuration metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_webserver_config_reloads_total",
			Help: "Total number of configuration reloads",
		},
		[]string{"status"}, // status: "success" or "error"
	)

	ConfigFeatureFlags = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demo_webserver_config_feature_flags",
			Help: "Current state of feature flags (1=enabled, 0=disabled)",
		},
		[]string{"feature_name"},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demo_webserver_application_info",
			Help: "Application information (always 1)",
		},
		[]string{"version", "go_version"},
	)
)

// RecordApplicationInfo records application metadata
func RecordApplicationInfo(version, goVersion string) {
	ApplicationInfo.WithLabelValues(version, goVersion).Set(1)
}

// RecordFeatureFlag exports a feature flag as 0 or 1.
func RecordFeatureFlag(name string, enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	ConfigFeatureFlags.WithLabelValues(name).Set(v)
}
