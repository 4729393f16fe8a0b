package kernel

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports the per-task analytics record of spec §3
// (last_active_ms, last_run_ms, total_run_ms, last_pend_ms) as
// Prometheus gauges, keyed by task name. Grounded on the teacher's use
// of prometheus/client_golang-style collectors for per-unit stats
// (core/blockstm's status-manager counters), generalized from ad hoc
// counters to real metric types.
type Metrics struct {
	lastActiveMs *prometheus.GaugeVec
	lastRunMs    *prometheus.GaugeVec
	totalRunMs   *prometheus.GaugeVec
	lastPendMs   *prometheus.GaugeVec
	readyDepth   prometheus.Gauge
	activePrios  prometheus.Gauge
}

// NewMetrics constructs the collector set and registers it against reg.
// Passing a nil registry is valid and yields unregistered (but still
// usable) collectors, for callers that don't want global registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lastActiveMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtcore", Subsystem: "task", Name: "last_active_ms",
			Help: "Millisecond timestamp the task last became the running task.",
		}, []string{"task"}),
		lastRunMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtcore", Subsystem: "task", Name: "last_run_ms",
			Help: "Duration, in milliseconds, of the task's most recently completed run.",
		}, []string{"task"}),
		totalRunMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtcore", Subsystem: "task", Name: "total_run_ms",
			Help: "Cumulative milliseconds the task has spent running.",
		}, []string{"task"}),
		lastPendMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtcore", Subsystem: "task", Name: "last_pend_ms",
			Help: "Millisecond timestamp the task last completed a pend-switch wake.",
		}, []string{"task"}),
		readyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtcore", Subsystem: "sched", Name: "ready_depth",
			Help: "Number of tasks currently in the ready queue.",
		}),
		activePrios: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtcore", Subsystem: "sched", Name: "active_priority_levels",
			Help: "Number of distinct priority levels with at least one ready task.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.lastActiveMs, m.lastRunMs, m.totalRunMs, m.lastPendMs, m.readyDepth, m.activePrios)
	}
	return m
}

// observeTask updates every per-task gauge from t's current analytics
// snapshot.
func (m *Metrics) observeTask(t *Task) {
	if m == nil {
		return
	}
	m.lastActiveMs.WithLabelValues(t.name).Set(float64(t.analytics.lastActiveMs))
	m.lastRunMs.WithLabelValues(t.name).Set(float64(t.analytics.lastRunMs))
	m.totalRunMs.WithLabelValues(t.name).Set(float64(t.analytics.totalRunMs))
	m.lastPendMs.WithLabelValues(t.name).Set(float64(t.analytics.lastPendMs))
}

func (m *Metrics) observeReadyDepth(n int) {
	if m == nil {
		return
	}
	m.readyDepth.Set(float64(n))
}

func (m *Metrics) observeActivePriorities(n int) {
	if m == nil {
		return
	}
	m.activePrios.Set(float64(n))
}
