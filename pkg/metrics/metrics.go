// Package metrics provides Prometheus instrumentation for the tap.
//
// # Overview
//
// Metrics are registered on the default registry at init and cover:
//   - API requests by endpoint and status, with latency
//   - Records emitted and skipped per stream
//   - Identifier resolution outcomes per category
//   - Analytics date windows processed per stream
//   - The latest persisted bookmark per stream
//
// # Basic Usage
//
//	metrics.RecordsEmitted.WithLabelValues("campaigns").Inc()
//	metrics.ObserveAPIRequest("accounts", "200", time.Since(start))
//
// Serve them with Handler() when a metrics address is configured.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkedin_ads"

var (
	// APIRequests counts API calls.
	// Labels: endpoint (stream or resolver name), status (HTTP code or "error")
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of LinkedIn API requests",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration tracks API latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "LinkedIn API request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	// RecordsEmitted counts records written to the sink.
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Total number of records written",
		},
		[]string{"stream"},
	)

	// RecordsSkipped counts records older than the stream bookmark.
	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Total number of records filtered by bookmark",
		},
		[]string{"stream"},
	)

	// ResolverLookups counts identifier resolutions.
	// Labels: category, outcome (resolved, fallback, cached)
	ResolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_lookups_total",
			Help:      "Identifier codes resolved by outcome",
		},
		[]string{"category", "outcome"},
	)

	// AnalyticsWindows counts processed analytics date windows.
	AnalyticsWindows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_windows_total",
			Help:      "Analytics date windows processed",
		},
		[]string{"stream"},
	)

	// BookmarkTimestamp is the last persisted bookmark as unix seconds.
	BookmarkTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bookmark_timestamp_seconds",
			Help:      "Last persisted bookmark per stream",
		},
		[]string{"stream"},
	)
)

// ObserveAPIRequest records one API call.
func ObserveAPIRequest(endpoint, status string, duration time.Duration) {
	APIRequests.WithLabelValues(endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveBookmark records a persisted bookmark.
func ObserveBookmark(stream string, bookmark time.Time) {
	BookmarkTimestamp.WithLabelValues(stream).Set(float64(bookmark.Unix()))
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
