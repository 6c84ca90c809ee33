package coordinator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for coordinated operations.
type Metrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the operation metrics. A nil registerer uses the
// default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func (m *Metrics) observe(op string, outcome, failedAt Step, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, string(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
	if outcome == StepFailed {
		m.failures.WithLabelValues(op, string(failedAt)).Inc()
	}
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_operations_total",
		Help: "Coordinated operations partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgercore_operation_failures_total",
		Help: "Failed operations partitioned by the step that failed.",
	}, []string{"operation", "step"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgercore_operation_duration_seconds",
		Help:    "Duration in seconds of coordinated operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	registerer.MustRegister(operations, failures, duration)
	return &Metrics{operations: operations, failures: failures, duration: duration}
}
