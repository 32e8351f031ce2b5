package journal

import (
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestLastCycleEmpty(t *testing.T) {
	j := newTestJournal(t)

	_, ok, err := j.LastCycle()
	if err != nil {
		t.Fatalf("LastCycle: %v", err)
	}
	if ok {
		t.Error("empty journal reported a cycle")
	}
}

func TestRecordAndReadCycles(t *testing.T) {
	j := newTestJournal(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := CycleSummary{
		ID:          "cycle-1",
		StartedAt:   base,
		FinishedAt:  base.Add(time.Minute),
		Transferred: 3,
		BytesMoved:  1024,
	}
	second := CycleSummary{
		ID:          "cycle-2",
		StartedAt:   base.Add(time.Hour),
		FinishedAt:  base.Add(time.Hour + time.Minute),
		Transferred: 1,
		Failed:      2,
		Skipped:     1,
		PrunedDirs:  4,
	}

	if err := j.RecordCycle(first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := j.RecordCycle(second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	last, ok, err := j.LastCycle()
	if err != nil {
		t.Fatalf("LastCycle: %v", err)
	}
	if !ok {
		t.Fatal("no cycle found")
	}
	if last.ID != "cycle-2" {
		t.Errorf("last cycle = %q, want the most recent", last.ID)
	}
	if last.Failed != 2 || last.Skipped != 1 || last.PrunedDirs != 4 {
		t.Errorf("last = %+v", last)
	}
}

func TestRecordAndReadTasks(t *testing.T) {
	j := newTestJournal(t)

	recs := []TaskRecord{
		{
			ID:         "task-1",
			CycleID:    "cycle-1",
			SourcePath: "docs/a.txt",
			RemotePath: "docs/a.txt",
			State:      "done",
			Attempts:   1,
			Size:       512,
			FinishedAt: time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC),
		},
		{
			ID:         "task-2",
			CycleID:    "cycle-1",
			SourcePath: "docs/b.txt",
			RemotePath: "docs/b.txt",
			State:      "failed",
			Attempts:   3,
			Error:      "RemoteUnavailable: remote store unreachable",
		},
		{
			ID:      "task-3",
			CycleID: "cycle-2",
			State:   "done",
		},
	}
	for _, rec := range recs {
		if err := j.RecordTask(rec); err != nil {
			t.Fatalf("record %s: %v", rec.ID, err)
		}
	}

	tasks, err := j.CycleTasks("cycle-1")
	if err != nil {
		t.Fatalf("CycleTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("tasks for cycle-1 = %d, want 2", len(tasks))
	}

	byID := make(map[string]TaskRecord)
	for _, rec := range tasks {
		byID[rec.ID] = rec
	}
	if byID["task-1"].State != "done" || byID["task-1"].Size != 512 {
		t.Errorf("task-1 = %+v", byID["task-1"])
	}
	if byID["task-2"].Error == "" {
		t.Error("task-2 lost its error message")
	}
}
