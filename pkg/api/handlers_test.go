package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marmos91/tierfs/pkg/local"
	"github.com/marmos91/tierfs/pkg/migrate"
	"github.com/marmos91/tierfs/pkg/migrate/journal"
	"github.com/marmos91/tierfs/pkg/mount"
	"github.com/marmos91/tierfs/pkg/remote/remotetest"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()

	lt, err := local.New(local.Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create local tier: %v", err)
	}
	fake := remotetest.New()

	scheduler, err := migrate.New(lt, fake, nil, nil, migrate.Config{Schedule: "0 * * * *"}, nil)
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}

	return Deps{
		LocalMount:  mount.NewHandle("local"),
		RemoteMount: mount.NewHandle("remote"),
		Local:       lt,
		Remote:      fake,
		Scheduler:   scheduler,
	}
}

func TestLiveness(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status before mounts ready = %d, want 503", rec.Code)
	}

	deps.LocalMount.Begin()
	deps.LocalMount.MarkReady()
	deps.RemoteMount.Begin()
	deps.RemoteMount.MarkReady()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status after mounts ready = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ready"] != true || body["local"] != "ready" {
		t.Errorf("body = %v", body)
	}
}

func TestTierHealth(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/tiers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]tierHealth
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["remote"].Reachable == nil || !*body["remote"].Reachable {
		t.Errorf("remote health = %+v, want reachable", body["remote"])
	}
}

func TestMigrationStatus(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/migration", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status migrationStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if status.State != "idle" {
		t.Errorf("state = %q", status.State)
	}
	if status.Last != nil {
		t.Errorf("last cycle before any run = %+v", status.Last)
	}
}

func TestMigrationStatusFromJournal(t *testing.T) {
	deps := newTestDeps(t)

	jrnl, err := journal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = jrnl.Close() })

	summary := journal.CycleSummary{
		ID:          "cycle-1",
		StartedAt:   time.Now().Add(-time.Hour).UTC(),
		FinishedAt:  time.Now().Add(-59 * time.Minute).UTC(),
		Transferred: 7,
		BytesMoved:  1024,
	}
	if err := jrnl.RecordCycle(summary); err != nil {
		t.Fatalf("failed to record cycle: %v", err)
	}
	deps.Journal = jrnl

	router := NewRouter(deps)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/migration", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status migrationStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if status.Last == nil {
		t.Fatal("last cycle missing despite journaled history")
	}
	if status.Last.ID != "cycle-1" || status.Last.Transferred != 7 {
		t.Errorf("last cycle = %+v", status.Last)
	}
}

func TestTrigger(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/migration/trigger", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("first trigger status = %d, want 202", rec.Code)
	}

	// The scheduler is not running, so the queued trigger stays pending
	// and a second one is rejected.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/migration/trigger", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("second trigger status = %d, want 409", rec.Code)
	}
}
