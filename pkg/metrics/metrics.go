// Package metrics defines the Prometheus collectors used by the indexer jobs,
// the searcher and the analytics service, and exposes an HTTP handler for
// scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	RateLimitedTotal       prometheus.Counter
	SearchQueriesTotal     *prometheus.CounterVec
	SearchLatency          *prometheus.HistogramVec
	SearchResultsCount     prometheus.Histogram
	SearchRowsScanned      prometheus.Histogram
	SearchMissingRows      prometheus.Counter
	AutocompleteTotal      *prometheus.CounterVec
	AutocompleteLatency    prometheus.Histogram
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	RowsIndexedTotal       prometheus.Counter
	TokensSkippedTotal     prometheus.Counter
	BuildJobsTotal         *prometheus.CounterVec
	BuildDuration          *prometheus.HistogramVec
	ArtifactTransfersTotal *prometheus.CounterVec
	AnalyticsEventsTotal   *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and prometheus.NewRegistry() in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of rows returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		SearchRowsScanned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_rows_scanned",
				Help:    "Row log frames read per search query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 12),
			},
		),
		SearchMissingRows: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_missing_rows_total",
				Help: "Postings that referenced rows past the end of the row log.",
			},
		),
		AutocompleteTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autocomplete_requests_total",
				Help: "Autocomplete requests by result type (hit, zero_result).",
			},
			[]string{"result_type"},
		),
		AutocompleteLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autocomplete_latency_seconds",
				Help:    "Autocomplete latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		RowsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rows_indexed_total",
				Help: "Total corpus rows indexed by build jobs.",
			},
		),
		TokensSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_tokens_skipped_total",
				Help: "Tokens dropped from the saved index for exceeding the maximum length.",
			},
		),
		BuildJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "build_jobs_total",
				Help: "Build job runs by job and status.",
			},
			[]string{"job", "status"},
		),
		BuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "build_job_duration_seconds",
				Help:    "Build job wall time in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"job"},
		),
		ArtifactTransfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artifact_transfers_total",
				Help: "Object store artifact uploads and downloads by status.",
			},
			[]string{"op", "status"},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Analytics events by outcome (published, dropped, consumed).",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RateLimitedTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SearchRowsScanned,
		m.SearchMissingRows,
		m.AutocompleteTotal,
		m.AutocompleteLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RowsIndexedTotal,
		m.TokensSkippedTotal,
		m.BuildJobsTotal,
		m.BuildDuration,
		m.ArtifactTransfersTotal,
		m.AnalyticsEventsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the scrape handler for the collectors in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
