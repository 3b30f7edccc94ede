// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec

	// Dashboard metrics
	Renders        *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	ChartBuilds    *prometheus.CounterVec

	// Headlines metrics
	FeedFetches *prometheus.CounterVec

	// Live refresh metrics
	WSClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dtfscope"
	}

	return &Metrics{
		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_latency_seconds",
			Help:      "Upstream API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of fetch cache lookups by model and result",
		}, []string{"model", "result"}),

		Renders: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "renders_total",
			Help:      "Total number of dashboard renders by final state",
		}, []string{"state"}),
		RenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "render_duration_seconds",
			Help:      "Dashboard render duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ChartBuilds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "chart_builds_total",
			Help:      "Total number of panel builds by kind and status",
		}, []string{"kind", "status"}),

		FeedFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "headlines",
			Name:      "feed_fetches_total",
			Help:      "Total number of feed fetches by outcome",
		}, []string{"outcome"}),

		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Number of connected WebSocket clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordUpstream records one upstream request and its latency.
func RecordUpstream(endpoint string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	DefaultMetrics.UpstreamLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordCacheLookup records a cache hit or miss for a model.
func RecordCacheLookup(model string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(model, result).Inc()
}

// RecordRender records a finished dashboard render.
func RecordRender(state string, seconds float64) {
	DefaultMetrics.Renders.WithLabelValues(state).Inc()
	DefaultMetrics.RenderDuration.Observe(seconds)
}

// RecordChartBuild records one panel build outcome.
func RecordChartBuild(kind, status string) {
	DefaultMetrics.ChartBuilds.WithLabelValues(kind, status).Inc()
}

// RecordFeedFetch records a headline feed fetch.
func RecordFeedFetch(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DefaultMetrics.FeedFetches.WithLabelValues(outcome).Inc()
}

// SetWSClients updates the connected WebSocket client gauge.
func SetWSClients(n int) {
	DefaultMetrics.WSClients.Set(float64(n))
}
