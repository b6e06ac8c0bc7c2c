// Package metrics exports per-operation prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	fanout     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classquiz_operations_total",
			Help: "Completed operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "classquiz_operation_duration_seconds",
			Help:    "Operation latency including every store round trip.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		fanout: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classquiz_fanout_failures_total",
			Help: "Tolerated sub-step failures inside fan-out and cleanup operations.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) Observe(operation, outcome string, d time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) FanoutFailure(operation string) {
	m.fanout.WithLabelValues(operation).Inc()
}
