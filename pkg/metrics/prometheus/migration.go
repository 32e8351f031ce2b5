package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tierfs/pkg/metrics"
)

// migrationMetrics is the Prometheus implementation of
// metrics.MigrationMetrics.
type migrationMetrics struct {
	cyclesTotal   prometheus.Counter
	cycleDuration prometheus.Histogram
	cycleOutcomes *prometheus.CounterVec
	bytesMigrated prometheus.Counter
	tasksInFlight prometheus.Gauge
	taskRetries   prometheus.Counter
}

// NewMigrationMetrics creates a Prometheus-backed MigrationMetrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewMigrationMetrics() metrics.MigrationMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &migrationMetrics{
		cyclesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tierfs_migration_cycles_total",
				Help: "Total number of completed migration cycles",
			},
		),
		cycleDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "tierfs_migration_cycle_duration_seconds",
				Help: "Duration of migration cycles in seconds",
				Buckets: []float64{
					1,    // trivial cycles
					10,   // small trees
					60,   // 1m
					300,  // 5m
					1800, // 30m - large backlogs
				},
			},
		),
		cycleOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierfs_migration_entries_total",
				Help: "Per-cycle entry outcomes (transferred, failed, skipped)",
			},
			[]string{"outcome"},
		),
		bytesMigrated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tierfs_migration_bytes_total",
				Help: "Total bytes moved to the remote tier",
			},
		),
		tasksInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tierfs_migration_tasks_in_flight",
				Help: "Transfer tasks currently executing",
			},
		),
		taskRetries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tierfs_migration_task_retries_total",
				Help: "Total transfer attempt retries",
			},
		),
	}
}

func (m *migrationMetrics) ObserveCycle(duration time.Duration, transferred, failed, skipped int) {
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.cycleOutcomes.WithLabelValues("transferred").Add(float64(transferred))
	m.cycleOutcomes.WithLabelValues("failed").Add(float64(failed))
	m.cycleOutcomes.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *migrationMetrics) AddBytesMigrated(n int64) {
	if n <= 0 {
		return
	}
	m.bytesMigrated.Add(float64(n))
}

func (m *migrationMetrics) SetTasksInFlight(n int) {
	m.tasksInFlight.Set(float64(n))
}

func (m *migrationMetrics) IncTaskRetries() {
	m.taskRetries.Inc()
}
