package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently
// across tiers, the union view, and the migration scheduler so logs
// aggregate cleanly.
const (
	// Operations
	KeyOperation  = "operation"   // operation name: read, write, list, rename, ...
	KeyTier       = "tier"        // tier serving the operation: local, remote, union
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // taxonomy error code name

	// Paths
	KeyPath    = "path"     // path within the union namespace
	KeyOldPath = "old_path" // rename source
	KeyNewPath = "new_path" // rename destination
	KeySize    = "size"     // entry size in bytes

	// Remote store
	KeyBucket  = "bucket"
	KeyKey     = "key" // object key including prefix
	KeyRegion  = "region"
	KeyAttempt = "attempt" // retry attempt number

	// Remote cache
	KeyCacheHit  = "cache_hit"
	KeyCacheSize = "cache_size" // current read-cache bytes
	KeyEvicted   = "evicted"    // entries evicted

	// Migration
	KeyCycle       = "cycle" // migration cycle ID
	KeyTask        = "task"  // transfer task ID
	KeyTaskState   = "state" // pending, in-flight, done, failed
	KeyTransferred = "transferred"
	KeyFailed      = "failed"
	KeySkipped     = "skipped"
	KeyPrunedDirs  = "pruned_dirs"
	KeyBytesMoved  = "bytes_moved"
	KeyNextRun     = "next_run"

	// Mounts
	KeyMount      = "mount"       // mount name: local, remote
	KeyMountState = "mount_state" // unmounted, mounting, ready, failed
)

// Err returns a slog.Attr for an error, or the empty Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Path returns a slog.Attr for a union-namespace path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Tier returns a slog.Attr naming the tier serving an operation.
func Tier(name string) slog.Attr {
	return slog.String(KeyTier, name)
}

// Operation returns a slog.Attr for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Cycle returns a slog.Attr for a migration cycle ID.
func Cycle(id string) slog.Attr {
	return slog.String(KeyCycle, id)
}

// Task returns a slog.Attr for a transfer task ID.
func Task(id string) slog.Attr {
	return slog.String(KeyTask, id)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Size returns a slog.Attr for an entry size.
func Size(n uint64) slog.Attr {
	return slog.Uint64(KeySize, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
