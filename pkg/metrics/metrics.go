// Package metrics defines the instrumentation interfaces used across
// the tiers, the union view, and the migration scheduler. Concrete
// implementations live in subpackages. A nil interface value disables
// instrumentation; callers nil-check before recording.
package metrics

import "time"

// RemoteMetrics observes remote store operations.
type RemoteMetrics interface {
	// ObserveOperation records one remote operation with its duration
	// and outcome. op is one of list, stat, read, write, move, delete.
	ObserveOperation(op string, duration time.Duration, success bool)

	// AddBytes accumulates payload bytes moved in the given direction
	// ("read" or "write").
	AddBytes(direction string, n int)

	// ObserveCacheLookup records a metadata/content cache hit or miss.
	ObserveCacheLookup(kind string, hit bool)

	// SetCacheSize records the current content cache footprint in bytes.
	SetCacheSize(bytes int64)
}

// MigrationMetrics observes migration scheduler cycles and tasks.
type MigrationMetrics interface {
	// ObserveCycle records one completed cycle with its duration and
	// per-cycle counts.
	ObserveCycle(duration time.Duration, transferred, failed, skipped int)

	// AddBytesMigrated accumulates payload bytes moved to the remote tier.
	AddBytesMigrated(n int64)

	// SetTasksInFlight records the number of tasks currently executing.
	SetTasksInFlight(n int)

	// IncTaskRetries counts one task retry attempt.
	IncTaskRetries()
}

// UnionMetrics observes operations served through the union view.
type UnionMetrics interface {
	// ObserveOperation records one union operation with the tier that
	// served it.
	ObserveOperation(op, tier string, duration time.Duration, success bool)
}
