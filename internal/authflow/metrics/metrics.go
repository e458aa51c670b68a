package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsStarted     *prometheus.CounterVec
	ActiveSessions      prometheus.Gauge
	ActivePollers       prometheus.Gauge
	ScanOpenTotal       *prometheus.CounterVec
	ScanPollsTotal      *prometheus.CounterVec
	ScanWaitDuration    prometheus.Histogram
	StaleResultsDropped prometheus.Counter
	DecisionsTotal      *prometheus.CounterVec
	SessionsReapedTotal prometheus.Counter
	CleanupRunsTotal    *prometheus.CounterVec
	CleanupDurationSecs prometheus.Histogram
}

// New registers the flow metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the flow metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_id_sessions_started_total",
			Help: "Authorization sessions started, by initial phase",
		}, []string{"phase"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "passport_id_sessions_active",
			Help: "Authorization sessions currently held in memory",
		}),
		ActivePollers: f.NewGauge(prometheus.GaugeOpts{
			Name: "passport_id_scan_pollers_active",
			Help: "Scan status pollers currently running",
		}),
		ScanOpenTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_id_scan_open_total",
			Help: "Scan-open requests, by result",
		}, []string{"result"}),
		ScanPollsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_id_scan_polls_total",
			Help: "Scan status polls, by result",
		}, []string{"result"}),
		ScanWaitDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "passport_id_scan_wait_duration_seconds",
			Help:    "Time from scan window open to passport scan",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		StaleResultsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "passport_id_stale_results_dropped_total",
			Help: "Async scan results discarded because the session had moved on",
		}),
		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_id_decisions_total",
			Help: "Authorization decisions, by outcome",
		}, []string{"outcome"}),
		SessionsReapedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "passport_id_sessions_reaped_total",
			Help: "Idle sessions closed by the cleanup worker",
		}),
		CleanupRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_id_session_cleanup_runs_total",
			Help: "Total number of session cleanup runs",
		}, []string{"status"}),
		CleanupDurationSecs: f.NewHistogram(prometheus.HistogramOpts{
			Name: "passport_id_session_cleanup_duration_seconds",
			Help: "Duration of session cleanup runs in seconds",
		}),
	}
}

func (m *Metrics) IncrementSessionsStarted(phase string) {
	m.SessionsStarted.WithLabelValues(phase).Inc()
}

func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

func (m *Metrics) PollerStarted() {
	m.ActivePollers.Inc()
}

func (m *Metrics) PollerStopped() {
	m.ActivePollers.Dec()
}

func (m *Metrics) IncrementScanOpen(result string) {
	m.ScanOpenTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementScanPoll(result string) {
	m.ScanPollsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveScanWait(seconds float64) {
	m.ScanWaitDuration.Observe(seconds)
}

func (m *Metrics) IncrementStaleDropped() {
	m.StaleResultsDropped.Inc()
}

func (m *Metrics) IncrementDecision(outcome string) {
	m.DecisionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementSessionsReaped(count int) {
	m.SessionsReapedTotal.Add(float64(count))
}

func (m *Metrics) IncrementCleanupRuns(status string) {
	m.CleanupRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCleanupDuration(durationSeconds float64) {
	m.CleanupDurationSecs.Observe(durationSeconds)
}
