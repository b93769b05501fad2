package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Apply pipeline metrics
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rsm_apply_duration_seconds",
			Help:    "Time taken to apply a committed log entry",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommandsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rsm_commands_total",
			Help: "Total number of commands applied",
		},
	)

	QueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rsm_queries_total",
			Help: "Total number of queries applied",
		},
	)

	DuplicateCommandsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rsm_duplicate_commands_total",
			Help: "Total number of commands short-circuited by duplicate detection",
		},
	)

	LastAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsm_last_applied_index",
			Help: "Highest log index applied on this replica",
		},
	)

	// Session / service metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsm_sessions_active",
			Help: "Number of currently registered sessions",
		},
	)

	ServicesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsm_services_active",
			Help: "Number of currently registered services",
		},
	)

	SessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rsm_sessions_expired_total",
			Help: "Total number of sessions removed by the keep-alive sweep",
		},
	)

	// Load monitor
	LoadEventRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsm_load_event_rate",
			Help: "Events per second observed over the load monitor's sliding window",
		},
	)

	HighLoadGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rsm_high_load",
			Help: "Whether the load monitor currently reports high load (1) or not (0)",
		},
	)

	// Snapshot / compaction metrics
	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rsm_snapshot_duration_seconds",
			Help:    "Time taken to take a full snapshot across all services",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rsm_snapshots_total",
			Help: "Total number of snapshots finalized",
		},
	)

	CompactionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rsm_compactions_total",
			Help: "Total number of log compactions performed",
		},
	)

	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rsm_compaction_duration_seconds",
			Help:    "Time taken for a compaction cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotsAbandonedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rsm_snapshots_abandoned_total",
			Help: "Total number of snapshot attempts abandoned after the completion-wait timeout",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ApplyDuration,
		CommandsTotal,
		QueriesTotal,
		DuplicateCommandsTotal,
		LastAppliedIndex,
		SessionsActive,
		ServicesActive,
		SessionsExpiredTotal,
		LoadEventRate,
		HighLoadGauge,
		SnapshotDuration,
		SnapshotsTotal,
		CompactionsTotal,
		CompactionDuration,
		SnapshotsAbandonedTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
