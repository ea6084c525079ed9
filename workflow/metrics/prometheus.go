// Package metrics provides a Prometheus-backed implementation of
// workflow.Metrics, using this engine's superstep/executor vocabulary for
// its label and series names.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements workflow.Metrics, exposing histograms for
// superstep duration, executor invocation latency, and checkpoint write
// latency, a gauge for mailbox depth, and counters for executor failures
// and middleware short-circuits. All series are namespaced "agentgraph_".
type PrometheusMetrics struct {
	supersteps          *prometheus.HistogramVec
	executorLatency     *prometheus.HistogramVec
	executorFailures    *prometheus.CounterVec
	mailboxDepth        prometheus.Gauge
	checkpointLatency   prometheus.Histogram
	middlewareShortCirc *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics registers every series with registry (pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for isolation in tests).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,
		supersteps: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "superstep_duration_ms",
			Help:      "Duration of one superstep in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"step_index"}),
		executorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "executor_invocation_ms",
			Help:      "Executor handler invocation duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"executor_id", "status"}),
		executorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "executor_failures_total",
			Help:      "Cumulative count of failed executor invocations",
		}, []string{"executor_id"}),
		mailboxDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentgraph",
			Name:      "mailbox_depth",
			Help:      "Number of messages ready for the current superstep",
		}),
		checkpointLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "checkpoint_write_ms",
			Help:      "Checkpoint write duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		middlewareShortCirc: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "middleware_short_circuits_total",
			Help:      "Pipeline runs terminated early by an interceptor setting Terminate",
		}, []string{"pipeline"}),
	}
}

// RecordSuperstep implements workflow.Metrics.
func (pm *PrometheusMetrics) RecordSuperstep(index int, durationMS int64) {
	if !pm.isEnabled() {
		return
	}
	pm.supersteps.WithLabelValues(itoa(index)).Observe(float64(durationMS))
}

// RecordExecutorInvocation implements workflow.Metrics.
func (pm *PrometheusMetrics) RecordExecutorInvocation(executorID string, durationMS int64, failed bool) {
	if !pm.isEnabled() {
		return
	}
	status := "success"
	if failed {
		status = "error"
		pm.executorFailures.WithLabelValues(executorID).Inc()
	}
	pm.executorLatency.WithLabelValues(executorID, status).Observe(float64(durationMS))
}

// RecordMailboxDepth implements workflow.Metrics.
func (pm *PrometheusMetrics) RecordMailboxDepth(depth int) {
	if !pm.isEnabled() {
		return
	}
	pm.mailboxDepth.Set(float64(depth))
}

// RecordCheckpointWrite implements workflow.Metrics.
func (pm *PrometheusMetrics) RecordCheckpointWrite(durationMS int64) {
	if !pm.isEnabled() {
		return
	}
	pm.checkpointLatency.Observe(float64(durationMS))
}

// RecordMiddlewareShortCircuit implements workflow.Metrics.
func (pm *PrometheusMetrics) RecordMiddlewareShortCircuit(pipeline string) {
	if !pm.isEnabled() {
		return
	}
	pm.middlewareShortCirc.WithLabelValues(pipeline).Inc()
}

// Disable temporarily stops recording, useful for tests.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
