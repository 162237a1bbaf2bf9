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
	// Simulation metrics
	ObjectsSimulated      prometheus.Counter
	ObservationsSimulated prometheus.Counter
	GenerationErrors      prometheus.Counter

	// Load metrics
	ObservationsInserted prometheus.Counter
	DuplicatesSkipped    prometheus.Counter
	ObjectLoadFailures   prometheus.Counter
	LoadDuration         prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Feed metrics
	FeedSubscribers prometheus.Gauge
	FeedItemsSent   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "lightcurvedb"
	}

	return &Metrics{
		ObjectsSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "objects_total",
			Help:      "Total number of synthetic objects generated",
		}),
		ObservationsSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "observations_total",
			Help:      "Total number of synthetic observations generated",
		}),
		GenerationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "generation_errors_total",
			Help:      "Total number of fatal generation errors",
		}),

		ObservationsInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "observations_inserted_total",
			Help:      "Total number of observations inserted by bulk loads",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of duplicate observations skipped by bulk loads",
		}),
		ObjectLoadFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "object_failures_total",
			Help:      "Total number of objects whose load failed",
		}),
		LoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "duration_seconds",
			Help:      "Bulk load duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"backend", "operation"}),

		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of websocket feed subscribers",
		}),
		FeedItemsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "items_sent_total",
			Help:      "Total number of feed items sent to subscribers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulation records one generated series.
func RecordSimulation(observations int) {
	DefaultMetrics.ObjectsSimulated.Inc()
	DefaultMetrics.ObservationsSimulated.Add(float64(observations))
}

// RecordGenerationError increments the fatal generation error counter.
func RecordGenerationError() {
	DefaultMetrics.GenerationErrors.Inc()
}

// RecordLoad records the aggregate outcome of one bulk load.
func RecordLoad(inserted, duplicates int, seconds float64) {
	DefaultMetrics.ObservationsInserted.Add(float64(inserted))
	DefaultMetrics.DuplicatesSkipped.Add(float64(duplicates))
	DefaultMetrics.LoadDuration.Observe(seconds)
}

// RecordObjectLoadFailed increments the per-object load failure counter.
func RecordObjectLoadFailed() {
	DefaultMetrics.ObjectLoadFailures.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(backend, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(backend, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(backend, operation).Inc()
	}
}

// SetFeedSubscribers updates the feed subscriber gauge.
func SetFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordFeedItemsSent adds to the feed item counter.
func RecordFeedItemsSent(n int) {
	DefaultMetrics.FeedItemsSent.Add(float64(n))
}
