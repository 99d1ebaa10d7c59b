// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Session metrics
	SessionsStarted    prometheus.Counter
	SessionsCompleted  prometheus.Counter
	SessionsFailed     prometheus.Counter
	SessionsSuperseded prometheus.Counter
	SessionInProgress  prometheus.Gauge
	SessionDuration    prometheus.Histogram
	StaleEvents        prometheus.Counter

	// Media metrics
	FilesCompleted    *prometheus.CounterVec
	DuplicatesSkipped prometheus.Counter
	ItemErrors        prometheus.Counter
	DownloadBytes     prometheus.Counter

	// Fallback metrics
	FallbackSuggested prometheus.Counter
	FallbackIngests   prometheus.Counter
}

// New creates all application metrics registered with reg. Pass nil for
// unregistered collectors (tests), or prometheus.DefaultRegisterer for the
// real thing.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	metrics := &Metrics{
		// Session metrics
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of sessions started",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "sessions",
			Name:      "completed_total",
			Help:      "Total number of sessions whose stream finished cleanly",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "sessions",
			Name:      "failed_total",
			Help:      "Total number of sessions whose stream failed",
		}),
		SessionsSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "sessions",
			Name:      "superseded_total",
			Help:      "Total number of sessions replaced by a newer submission",
		}),
		SessionInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "xhsdl",
			Subsystem: "sessions",
			Name:      "in_progress",
			Help:      "Whether a session transfer is currently running (0 or 1)",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "xhsdl",
			Subsystem: "sessions",
			Name:      "duration_seconds",
			Help:      "Histogram of session transfer duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		StaleEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "sessions",
			Name:      "stale_events_total",
			Help:      "Total number of events discarded from superseded sessions",
		}),

		// Media metrics
		FilesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "media",
			Name:      "files_completed_total",
			Help:      "Total number of files surfaced, by kind",
		}, []string{"kind"}),
		DuplicatesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "media",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of duplicate file reports suppressed",
		}),
		ItemErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "media",
			Name:      "item_errors_total",
			Help:      "Total number of per-item transfer errors",
		}),
		DownloadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "media",
			Name:      "download_bytes_total",
			Help:      "Total bytes downloaded across all sessions",
		}),

		// Fallback metrics
		FallbackSuggested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "fallback",
			Name:      "suggested_total",
			Help:      "Total number of times the fallback path was suggested",
		}),
		FallbackIngests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "xhsdl",
			Subsystem: "fallback",
			Name:      "ingests_total",
			Help:      "Total number of fallback batches ingested",
		}),
	}

	return metrics
}

// Handler returns the Prometheus HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SessionTimer returns a function to record session transfer duration.
func (m *Metrics) SessionTimer() func() {
	start := time.Now()

	return func() {
		m.SessionDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordSessionStarted increments the session counters for a fresh run.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionInProgress.Set(1)
}

// RecordSessionCompleted records a cleanly finished stream.
func (m *Metrics) RecordSessionCompleted() {
	m.SessionsCompleted.Inc()
	m.SessionInProgress.Set(0)
}

// RecordSessionFailed records a failed stream.
func (m *Metrics) RecordSessionFailed() {
	m.SessionsFailed.Inc()
	m.SessionInProgress.Set(0)
}

// RecordSessionSuperseded records a session replaced by a newer one.
func (m *Metrics) RecordSessionSuperseded() {
	m.SessionsSuperseded.Inc()
}

// RecordStaleEvent records an event dropped for belonging to an old session.
func (m *Metrics) RecordStaleEvent() {
	m.StaleEvents.Inc()
}

// RecordFileCompleted records one surfaced file of the given kind.
func (m *Metrics) RecordFileCompleted(kind string) {
	m.FilesCompleted.WithLabelValues(kind).Inc()
}

// RecordDuplicateSkipped records a suppressed duplicate path.
func (m *Metrics) RecordDuplicateSkipped() {
	m.DuplicatesSkipped.Inc()
}

// RecordItemError records a per-item transfer error.
func (m *Metrics) RecordItemError() {
	m.ItemErrors.Inc()
}

// RecordDownloadBytes adds to the downloaded byte counter.
func (m *Metrics) RecordDownloadBytes(n int64) {
	m.DownloadBytes.Add(float64(n))
}

// RecordFallbackSuggested records the fallback flag being raised.
func (m *Metrics) RecordFallbackSuggested() {
	m.FallbackSuggested.Inc()
}

// RecordFallbackStarted marks the session transfer active again for a batch.
func (m *Metrics) RecordFallbackStarted() {
	m.SessionInProgress.Set(1)
}

// RecordFallbackIngest records a completed fallback batch.
func (m *Metrics) RecordFallbackIngest() {
	m.FallbackIngests.Inc()
	m.SessionInProgress.Set(0)
}
