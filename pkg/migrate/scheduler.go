// Package migrate implements the local-to-remote migration scheduler.
// Each cycle scans the local tier, transfers quiescent files to the
// remote store with bounded parallelism, verifies every write before
// removing the local copy, and prunes emptied directories.
package migrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/local"
	"github.com/marmos91/tierfs/pkg/metrics"
	"github.com/marmos91/tierfs/pkg/migrate/journal"
	"github.com/marmos91/tierfs/pkg/remote"
	"github.com/marmos91/tierfs/pkg/tier"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

// Clock abstracts time so cycles and retry waits are testable without
// wall-clock sleeps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// CycleState is the scheduler's phase within one cycle.
type CycleState string

const (
	// StateIdle means no cycle is running.
	StateIdle CycleState = "idle"

	// StateScanning means the local tier is being walked for eligible
	// entries.
	StateScanning CycleState = "scanning"

	// StateTransferring means transfer workers are draining the task set.
	StateTransferring CycleState = "transferring"

	// StatePruning means emptied directories are being removed.
	StatePruning CycleState = "pruning"
)

// Config holds scheduler configuration.
type Config struct {
	// Schedule is a standard five-field cron expression.
	Schedule string

	// Transfers is the number of concurrent transfer workers.
	// Default: 16.
	Transfers int

	// Checkers is the number of concurrent verification workers.
	// Default: 8.
	Checkers int

	// MaxRetries bounds transfer attempts per task within one cycle.
	// Default: 3.
	MaxRetries int

	// RetryDelay is the initial backoff between attempts; it doubles
	// per retry. Default: 500ms.
	RetryDelay time.Duration

	// QuiesceWindow is how long a file must go unwritten before it is
	// eligible for transfer. Default: 1m.
	QuiesceWindow time.Duration
}

func (c *Config) applyDefaults() {
	if c.Transfers <= 0 {
		c.Transfers = 16
	}
	if c.Checkers <= 0 {
		c.Checkers = 8
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.QuiesceWindow <= 0 {
		c.QuiesceWindow = time.Minute
	}
}

// CycleResult summarizes one completed cycle.
type CycleResult struct {
	CycleID     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Transferred int
	Failed      int
	Skipped     int
	PrunedDirs  int
	BytesMoved  uint64
	Tasks       []*Task
}

// Scheduler runs migration cycles on a cron schedule. Cycles never
// overlap: a trigger arriving while one runs is queued and executed
// once the running cycle finishes.
type Scheduler struct {
	local   *local.Tier
	remote  remote.Client
	tracker *local.WriteTracker
	journal *journal.Journal
	metrics metrics.MigrationMetrics

	cfg      Config
	schedule cron.Schedule
	clock    Clock

	// cycleMu serializes cycles across the cron loop, manual triggers,
	// and direct RunCycle calls.
	cycleMu sync.Mutex

	mu      sync.Mutex
	state   CycleState
	last    *CycleResult
	nextRun time.Time

	triggerCh chan struct{}
	stopCh    chan struct{}
	stoppedCh chan struct{}
	started   bool
}

// New creates a Scheduler. tracker and jrnl may be nil; quiescence then
// falls back to file mtimes and history is not persisted.
func New(lt *local.Tier, rc remote.Client, tracker *local.WriteTracker, jrnl *journal.Journal, cfg Config, m metrics.MigrationMetrics) (*Scheduler, error) {
	cfg.applyDefaults()

	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, tiererrors.NewConfigInvalid(
			fmt.Sprintf("invalid migration schedule %q", cfg.Schedule), err)
	}

	return &Scheduler{
		local:     lt,
		remote:    rc,
		tracker:   tracker,
		journal:   jrnl,
		metrics:   m,
		cfg:       cfg,
		schedule:  schedule,
		clock:     realClock{},
		state:     StateIdle,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}, nil
}

// SetClock replaces the time source. Call before Start.
func (s *Scheduler) SetClock(c Clock) {
	s.clock = c
}

// Start launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	logger.Info("Starting migration scheduler",
		"schedule", s.cfg.Schedule,
		"transfers", s.cfg.Transfers,
		"checkers", s.cfg.Checkers)

	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.stoppedCh)

	for {
		next := s.schedule.Next(s.clock.Now())
		s.mu.Lock()
		s.nextRun = next
		s.mu.Unlock()

		logger.Debug("Next migration cycle scheduled", logger.KeyNextRun, next)

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.triggerCh:
			s.runAndLog(ctx, "manual")
		case <-s.clock.After(next.Sub(s.clock.Now())):
			s.runAndLog(ctx, "scheduled")
		}
	}
}

func (s *Scheduler) runAndLog(ctx context.Context, kind string) {
	result, err := s.RunCycle(ctx)
	if err != nil {
		logger.Error("Migration cycle failed", "kind", kind, logger.Err(err))
		return
	}
	logger.Info("Migration cycle complete",
		"kind", kind,
		logger.Cycle(result.CycleID),
		logger.KeyTransferred, result.Transferred,
		logger.KeyFailed, result.Failed,
		logger.KeySkipped, result.Skipped,
		logger.KeyPrunedDirs, result.PrunedDirs,
		logger.KeyBytesMoved, result.BytesMoved,
		logger.KeyDurationMs, result.FinishedAt.Sub(result.StartedAt).Milliseconds())
}

// Stop shuts down the cron loop, waiting up to timeout for a running
// cycle to finish.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.stoppedCh:
		logger.Info("Migration scheduler stopped")
	case <-time.After(timeout):
		logger.Warn("Migration scheduler stop timed out")
	}
}

// TriggerNow queues a cycle. Returns false when a trigger is already
// queued; a running cycle still absorbs exactly one queued trigger
// after it finishes, never interleaving.
func (s *Scheduler) TriggerNow() bool {
	select {
	case s.triggerCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// State returns the current cycle phase.
func (s *Scheduler) State() CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult returns the most recent cycle's result, or nil before the
// first cycle.
func (s *Scheduler) LastResult() *CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns the next scheduled fire time.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) setState(state CycleState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// RunCycle executes one full cycle synchronously. Concurrent callers
// serialize on the cycle lock.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleResult, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	result := &CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: s.clock.Now(),
	}

	opCtx := logger.WithContext(ctx, &logger.OpContext{
		Operation: "migration_cycle",
		CycleID:   result.CycleID,
		StartTime: time.Now(),
	})

	// Scan.
	s.setState(StateScanning)
	tasks, skipped, err := s.scan(opCtx)
	if err != nil {
		s.setState(StateIdle)
		return nil, err
	}
	result.Skipped = skipped
	result.Tasks = tasks

	logger.InfoCtx(opCtx, "Scan complete",
		"eligible", len(tasks),
		logger.KeySkipped, skipped)

	// Transfer.
	s.setState(StateTransferring)
	s.transfer(opCtx, tasks)

	for _, t := range tasks {
		switch t.State {
		case TaskDone:
			result.Transferred++
			result.BytesMoved += t.Size
		case TaskFailed:
			result.Failed++
		}
	}

	// Prune.
	s.setState(StatePruning)
	pruned, err := s.local.RemoveEmptyDirs("")
	if err != nil {
		logger.WarnCtx(opCtx, "Directory pruning failed", logger.Err(err))
	}
	result.PrunedDirs = pruned

	result.FinishedAt = s.clock.Now()
	s.record(result)

	s.mu.Lock()
	s.last = result
	s.state = StateIdle
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveCycle(result.FinishedAt.Sub(result.StartedAt),
			result.Transferred, result.Failed, result.Skipped)
		s.metrics.AddBytesMigrated(int64(result.BytesMoved))
	}

	return result, nil
}

// scan walks the local tier and builds the eligible task set. Files
// written within the quiesce window are skipped this cycle.
func (s *Scheduler) scan(ctx context.Context) ([]*Task, int, error) {
	now := s.clock.Now()

	var tasks []*Task
	skipped := 0
	err := s.local.Walk("", func(e tier.Entry) error {
		if e.IsDir() {
			return nil
		}
		if !s.quiescent(e, now) {
			skipped++
			logger.DebugCtx(ctx, "Skipping recently written file", logger.Path(e.Path))
			return nil
		}
		tasks = append(tasks, newTask(e.Path, e.Size))
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return tasks, skipped, nil
}

func (s *Scheduler) quiescent(e tier.Entry, now time.Time) bool {
	if s.tracker != nil {
		return s.tracker.Quiescent(e.Path, e.ModTime, s.cfg.QuiesceWindow, now)
	}
	return now.Sub(e.ModTime) >= s.cfg.QuiesceWindow
}

// transfer drains the task set through the transfer pool and the
// verification pool. A task's local copy is deleted only after the
// remote write has been re-checked against the store.
func (s *Scheduler) transfer(ctx context.Context, tasks []*Task) {
	if len(tasks) == 0 {
		return
	}

	transferCh := make(chan *Task)
	checkCh := make(chan *Task, len(tasks))

	var transferWG, checkWG sync.WaitGroup

	for i := 0; i < s.cfg.Transfers; i++ {
		transferWG.Add(1)
		go func() {
			defer transferWG.Done()
			for task := range transferCh {
				if s.upload(ctx, task) {
					checkCh <- task
				}
			}
		}()
	}

	for i := 0; i < s.cfg.Checkers; i++ {
		checkWG.Add(1)
		go func() {
			defer checkWG.Done()
			for task := range checkCh {
				s.verifyAndRemove(ctx, task)
			}
		}()
	}

	inFlight := 0
	for _, task := range tasks {
		transferCh <- task
		inFlight++
		if s.metrics != nil {
			s.metrics.SetTasksInFlight(inFlight)
		}
	}
	close(transferCh)
	transferWG.Wait()
	close(checkCh)
	checkWG.Wait()

	if s.metrics != nil {
		s.metrics.SetTasksInFlight(0)
	}
}

// upload pushes one file to the remote store, retrying with exponential
// backoff. Cancellation is checked between attempts, never mid-write.
// Returns true when the remote write was acknowledged.
func (s *Scheduler) upload(ctx context.Context, task *Task) bool {
	task.State = TaskInFlight

	data, err := s.local.Read(task.SourcePath, 0, -1)
	if err != nil {
		s.fail(task, err)
		return false
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryDelay

	for {
		task.Attempts++
		_, err = s.remote.Write(ctx, task.RemotePath, data)
		if err == nil {
			return true
		}

		logger.Warn("Transfer attempt failed",
			logger.Task(task.ID),
			logger.Path(task.SourcePath),
			logger.Attempt(task.Attempts),
			logger.Err(err))
		if s.metrics != nil {
			s.metrics.IncTaskRetries()
		}

		if task.Attempts >= s.cfg.MaxRetries {
			s.fail(task, err)
			return false
		}

		select {
		case <-ctx.Done():
			s.fail(task, ctx.Err())
			return false
		case <-s.clock.After(policy.NextBackOff()):
		}
	}
}

// verifyAndRemove confirms the object landed remotely, then deletes the
// local copy. Any discrepancy keeps the local copy for the next cycle.
func (s *Scheduler) verifyAndRemove(ctx context.Context, task *Task) {
	entry, err := s.remote.Stat(ctx, task.RemotePath)
	if err != nil {
		s.fail(task, fmt.Errorf("remote verification failed: %w", err))
		return
	}
	if entry.Size != task.Size {
		s.fail(task, fmt.Errorf("remote size %d does not match local size %d", entry.Size, task.Size))
		return
	}

	if err := s.local.Delete(task.SourcePath); err != nil {
		s.fail(task, fmt.Errorf("failed to remove migrated local copy: %w", err))
		return
	}
	if s.tracker != nil {
		s.tracker.Forget(task.SourcePath)
	}

	task.State = TaskDone
	task.FinishedAt = s.clock.Now()

	logger.Debug("Transferred file to remote tier",
		logger.Task(task.ID),
		logger.Path(task.SourcePath),
		logger.Size(task.Size))
}

func (s *Scheduler) fail(task *Task, err error) {
	task.State = TaskFailed
	task.Err = err
	task.FinishedAt = s.clock.Now()

	logger.Error("Transfer task failed, keeping local copy",
		logger.Task(task.ID),
		logger.Path(task.SourcePath),
		logger.Attempt(task.Attempts),
		logger.Err(err))
}

// record persists the cycle outcome when a journal is attached.
func (s *Scheduler) record(result *CycleResult) {
	if s.journal == nil {
		return
	}

	sum := journal.CycleSummary{
		ID:          result.CycleID,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Transferred: result.Transferred,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
		PrunedDirs:  result.PrunedDirs,
		BytesMoved:  result.BytesMoved,
	}
	if err := s.journal.RecordCycle(sum); err != nil {
		logger.Warn("Failed to journal cycle summary", logger.Err(err))
	}

	for _, t := range result.Tasks {
		rec := journal.TaskRecord{
			ID:         t.ID,
			CycleID:    result.CycleID,
			SourcePath: t.SourcePath,
			RemotePath: t.RemotePath,
			State:      string(t.State),
			Attempts:   t.Attempts,
			Size:       t.Size,
			FinishedAt: t.FinishedAt,
		}
		if t.Err != nil {
			rec.Error = t.Err.Error()
		}
		if err := s.journal.RecordTask(rec); err != nil {
			logger.Warn("Failed to journal task record", logger.Err(err))
		}
	}
}
