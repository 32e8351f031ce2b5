package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/tierfs/pkg/local"
	"github.com/marmos91/tierfs/pkg/migrate"
	"github.com/marmos91/tierfs/pkg/migrate/journal"
	"github.com/marmos91/tierfs/pkg/mount"
	"github.com/marmos91/tierfs/pkg/remote"
)

// Deps holds the components the handlers report on and control.
type Deps struct {
	LocalMount  *mount.Handle
	RemoteMount *mount.Handle
	Local       *local.Tier
	Remote      remote.Client
	Scheduler   *migrate.Scheduler

	// Journal is optional. When set, the migration status falls back to
	// the journaled last cycle if no cycle has run in this process yet.
	Journal *journal.Journal
}

type handler struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// liveness reports process liveness only.
func (h *handler) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports 200 only once both tiers are mounted.
func (h *handler) readiness(w http.ResponseWriter, r *http.Request) {
	ready := h.deps.LocalMount.IsReady() && h.deps.RemoteMount.IsReady()

	status := http.StatusOK
	body := map[string]any{
		"ready":  ready,
		"local":  h.deps.LocalMount.State().String(),
		"remote": h.deps.RemoteMount.State().String(),
	}
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

type tierHealth struct {
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	FreeBytes uint64 `json:"free_bytes,omitempty"`
	Reachable *bool  `json:"reachable,omitempty"`
}

// tiers reports per-tier detail: mount state, local free space, and a
// live remote health probe.
func (h *handler) tiers(w http.ResponseWriter, r *http.Request) {
	localHealth := tierHealth{State: h.deps.LocalMount.State().String()}
	if err := h.deps.LocalMount.Err(); err != nil {
		localHealth.Error = err.Error()
	}
	if h.deps.Local != nil {
		if free, err := h.deps.Local.FreeSpace(); err == nil {
			localHealth.FreeBytes = free
		}
	}

	remoteHealth := tierHealth{State: h.deps.RemoteMount.State().String()}
	if err := h.deps.RemoteMount.Err(); err != nil {
		remoteHealth.Error = err.Error()
	}
	if h.deps.Remote != nil {
		probeCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		reachable := h.deps.Remote.HealthCheck(probeCtx) == nil
		remoteHealth.Reachable = &reachable
	}

	writeJSON(w, http.StatusOK, map[string]tierHealth{
		"local":  localHealth,
		"remote": remoteHealth,
	})
}

type migrationStatus struct {
	State   string        `json:"state"`
	NextRun *time.Time    `json:"next_run,omitempty"`
	Last    *cycleSummary `json:"last_cycle,omitempty"`
}

type cycleSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Transferred int       `json:"transferred"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	PrunedDirs  int       `json:"pruned_dirs"`
	BytesMoved  uint64    `json:"bytes_moved"`
}

// migration reports the scheduler's phase, next fire time, and the
// last cycle's outcome. When no cycle has run in this process yet, the
// journaled last cycle (from a previous run) is reported instead.
func (h *handler) migration(w http.ResponseWriter, r *http.Request) {
	status := migrationStatus{State: string(h.deps.Scheduler.State())}

	if next := h.deps.Scheduler.NextRun(); !next.IsZero() {
		status.NextRun = &next
	}
	if last := h.deps.Scheduler.LastResult(); last != nil {
		status.Last = &cycleSummary{
			ID:          last.CycleID,
			StartedAt:   last.StartedAt,
			FinishedAt:  last.FinishedAt,
			Transferred: last.Transferred,
			Failed:      last.Failed,
			Skipped:     last.Skipped,
			PrunedDirs:  last.PrunedDirs,
			BytesMoved:  last.BytesMoved,
		}
	} else if h.deps.Journal != nil {
		if sum, ok, err := h.deps.Journal.LastCycle(); err == nil && ok {
			status.Last = &cycleSummary{
				ID:          sum.ID,
				StartedAt:   sum.StartedAt,
				FinishedAt:  sum.FinishedAt,
				Transferred: sum.Transferred,
				Failed:      sum.Failed,
				Skipped:     sum.Skipped,
				PrunedDirs:  sum.PrunedDirs,
				BytesMoved:  sum.BytesMoved,
			}
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// trigger queues a migration cycle. 202 when queued, 409 when a
// trigger is already pending.
func (h *handler) trigger(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scheduler.TriggerNow() {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	writeJSON(w, http.StatusConflict, map[string]string{"status": "already queued"})
}
