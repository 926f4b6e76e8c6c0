// Package metrics provides Prometheus metrics for the HTTP server and the leaflet pipelines.
//
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Pipeline metrics cover portal searches per tier, fetch outcomes, browser sessions,
// index builds, the index cache and answering outcomes.
//
// All metrics are registered with the Prometheus default registry during package initialization.
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
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
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
			Help: "Total number of rate limiter buckets (clients seen since last cleanup)",
		},
	)

	PortalSearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_search_total",
			Help: "Portal searches by fallback tier and outcome (results, no_results, no_candidates, error)",
		},
		[]string{"tier", "outcome"},
	)

	LeafletFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflet_fetch_total",
			Help: "Leaflet fetches by terminal status",
		},
		[]string{"status"},
	)

	LeafletFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaflet_fetch_duration_seconds",
			Help:    "End to end leaflet fetch latency",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		},
	)

	LowConfidenceMatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leaflet_low_confidence_match_total",
			Help: "Best matches accepted below the confidence threshold",
		},
	)

	BrowserSessionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "browser_sessions_in_flight",
			Help: "Browser sessions currently open",
		},
	)

	IndexBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaflet_index_build_duration_seconds",
			Help:    "Time to extract, chunk and embed one leaflet",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)

	IndexCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflet_index_cache_requests_total",
			Help: "Index cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	IndexCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "leaflet_index_cache_entries",
			Help: "Indexes currently cached",
		},
	)

	AnswerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leaflet_answer_total",
			Help: "Answered questions by status (answered, no_content, failed)",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(PortalSearchTotal)
	prometheus.MustRegister(LeafletFetchTotal)
	prometheus.MustRegister(LeafletFetchDuration)
	prometheus.MustRegister(LowConfidenceMatchTotal)
	prometheus.MustRegister(BrowserSessionsInFlight)
	prometheus.MustRegister(IndexBuildDuration)
	prometheus.MustRegister(IndexCacheRequests)
	prometheus.MustRegister(IndexCacheEntries)
	prometheus.MustRegister(AnswerTotal)
}
