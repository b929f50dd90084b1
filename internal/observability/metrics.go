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
	// Replay metrics
	ReplayLinesRead     prometheus.Counter
	ReplayEventsEmitted *prometheus.CounterVec
	ReplayTradesDropped prometheus.Counter
	ReplayFeedErrors    *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Archive metrics
	ArchiveEventsWritten prometheus.Counter
	ArchiveWriteDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketdata_archiver"
	}

	return &Metrics{
		// Replay metrics
		ReplayLinesRead: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "lines_read_total",
			Help:      "Total number of NDJSON lines read from replay sessions",
		}),
		ReplayEventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_emitted_total",
			Help:      "Total number of normalized events emitted by kind",
		}, []string{"kind"}),
		ReplayTradesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "trades_before_window_total",
			Help:      "Total number of trades dropped for preceding the window start",
		}),
		ReplayFeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "feed_errors_total",
			Help:      "Total number of aborted replay sessions by error kind",
		}, []string{"kind"}),

		// Run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of archive runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Archive run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		// Archive metrics
		ArchiveEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "events_written_total",
			Help:      "Total number of events written to the archive",
		}),
		ArchiveWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "write_duration_seconds",
			Help:      "Archive write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful archive run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordReplayLine increments the replay lines read counter.
func RecordReplayLine() {
	DefaultMetrics.ReplayLinesRead.Inc()
}

// RecordReplayEvent increments the emitted events counter for kind.
func RecordReplayEvent(kind string) {
	DefaultMetrics.ReplayEventsEmitted.WithLabelValues(kind).Inc()
}

// RecordTradesDropped adds n trades dropped before the window start.
func RecordTradesDropped(n int) {
	if n > 0 {
		DefaultMetrics.ReplayTradesDropped.Add(float64(n))
	}
}

// RecordFeedError records an aborted replay session.
func RecordFeedError(kind string) {
	DefaultMetrics.ReplayFeedErrors.WithLabelValues(kind).Inc()
}

// RecordRun records a finished run.
func RecordRun(status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	if status == "SUCCESS" {
		DefaultMetrics.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}

// RecordArchiveWrite records an archive write.
func RecordArchiveWrite(store string, events int, seconds float64) {
	DefaultMetrics.ArchiveEventsWritten.Add(float64(events))
	DefaultMetrics.ArchiveWriteDuration.WithLabelValues(store).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
