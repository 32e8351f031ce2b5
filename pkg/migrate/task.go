package migrate

import (
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle state of one transfer task.
type TaskState string

const (
	// TaskPending means the task is queued and has not started.
	TaskPending TaskState = "pending"

	// TaskInFlight means a transfer attempt is running.
	TaskInFlight TaskState = "in-flight"

	// TaskDone means the remote write was verified and the local copy
	// removed.
	TaskDone TaskState = "done"

	// TaskFailed means all attempts failed; the local copy is kept for
	// the next cycle.
	TaskFailed TaskState = "failed"
)

// Task is one local-to-remote transfer created during a cycle's scan.
type Task struct {
	// ID identifies the task in logs and the journal.
	ID string

	// SourcePath is the local tier path being transferred.
	SourcePath string

	// RemotePath is the destination path in the remote tier. It equals
	// SourcePath; the tiers share one namespace.
	RemotePath string

	// State is the current lifecycle state.
	State TaskState

	// Attempts counts transfer attempts made so far.
	Attempts int

	// Size is the payload size at scan time.
	Size uint64

	// Err holds the last attempt's failure, nil unless State is failed.
	Err error

	// FinishedAt is set when the task settles in done or failed.
	FinishedAt time.Time
}

func newTask(path string, size uint64) *Task {
	return &Task{
		ID:         uuid.NewString(),
		SourcePath: path,
		RemotePath: path,
		State:      TaskPending,
		Size:       size,
	}
}
