package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tierfs/pkg/metrics"
)

// unionMetrics is the Prometheus implementation of metrics.UnionMetrics.
type unionMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewUnionMetrics creates a Prometheus-backed UnionMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewUnionMetrics() metrics.UnionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &unionMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierfs_union_operations_total",
				Help: "Union namespace operations by type, serving tier, and status",
			},
			[]string{"operation", "tier", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tierfs_union_operation_duration_milliseconds",
				Help: "Duration of union namespace operations in milliseconds",
				Buckets: []float64{
					1,    // local metadata
					10,   // local I/O
					100,  // remote metadata
					1000, // remote I/O
					5000, // slow remote reads
				},
			},
			[]string{"operation", "tier"},
		),
	}
}

func (m *unionMetrics) ObserveOperation(op, tier string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(op, tier, status).Inc()
	m.operationDuration.WithLabelValues(op, tier).Observe(duration.Seconds() * 1000)
}
