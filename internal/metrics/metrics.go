// Package metrics exposes Prometheus instruments for the inference loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns the instruments and the registry they live in. A nil
// *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	ticks            prometheus.Counter
	tickFailures     prometheus.Counter
	predictLatency   prometheus.Histogram
	tickLatency      prometheus.Histogram
	bestProbability  prometheus.Gauge
	verdicts         *prometheus.CounterVec
	historySaves     prometheus.Counter
	snapshotsWritten *prometheus.CounterVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "foodvision",
		subsystem:        "inference",
		histogramBuckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.init()
	return m
}

func (m *Manager) init() {
	m.ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ticks_total", Help: "Completed inference ticks.",
	})
	m.tickFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "tick_failures_total", Help: "Ticks aborted by capture or prediction errors.",
	})
	m.predictLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "predict_duration_seconds", Help: "Model prediction latency.",
		Buckets: m.histogramBuckets,
	})
	m.tickLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "tick_duration_seconds", Help: "Full tick latency including render.",
		Buckets: m.histogramBuckets,
	})
	m.bestProbability = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "best_probability", Help: "Probability of the current best class.",
	})
	m.verdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "verdicts_total", Help: "Ticks by verdict.",
	}, []string{"verdict"})
	m.historySaves = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ui",
		Name: "history_saves_total", Help: "Entries saved to the history log.",
	})
	m.snapshotsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ui",
		Name: "snapshots_total", Help: "Snapshots exported by format.",
	}, []string{"format"})

	m.registry.MustRegister(
		m.ticks, m.tickFailures, m.predictLatency, m.tickLatency,
		m.bestProbability, m.verdicts, m.historySaves, m.snapshotsWritten,
	)
}

func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Manager) RecordTick(d time.Duration, verdict string, bestProbability float64) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickLatency.Observe(d.Seconds())
	m.verdicts.WithLabelValues(verdict).Inc()
	m.bestProbability.Set(bestProbability)
}

func (m *Manager) RecordTickFailure() {
	if m == nil {
		return
	}
	m.tickFailures.Inc()
}

func (m *Manager) ObservePredict(d time.Duration) {
	if m == nil {
		return
	}
	m.predictLatency.Observe(d.Seconds())
}

func (m *Manager) RecordHistorySave() {
	if m == nil {
		return
	}
	m.historySaves.Inc()
}

func (m *Manager) RecordSnapshot(format string) {
	if m == nil {
		return
	}
	m.snapshotsWritten.WithLabelValues(format).Inc()
}
