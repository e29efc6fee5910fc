// Package metrics provides Prometheus metrics for the HTTP server and the
// registry sweep. HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Registry and report metrics are listed below with their help text. All
// metrics are registered with the Prometheus default registry during package
// initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	RegistryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_requests_total",
			Help: "Registry search attempts by outcome",
		},
		[]string{"outcome"},
	)

	RegistryRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registry_request_duration_seconds",
			Help:    "Latency of a single registry search attempt",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of a full keyword sweep",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	KeywordFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keyword_failures_total",
			Help: "Keywords whose registry search failed after retries",
		},
	)

	ApprovalRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "approval_records",
			Help: "Oncology approval records in the working collection",
		},
	)

	EmailDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_dispatch_total",
			Help: "Report email dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(RegistryRequestsTotal)
	prometheus.MustRegister(RegistryRequestDuration)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(KeywordFailuresTotal)
	prometheus.MustRegister(ApprovalRecords)
	prometheus.MustRegister(EmailDispatchTotal)
}
