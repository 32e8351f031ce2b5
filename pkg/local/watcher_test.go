package local

import (
	"testing"
	"time"
)

func TestWriteTrackerObservesWrites(t *testing.T) {
	tr := newTestTier(t, Config{})

	tracker, err := NewWriteTracker(tr.Root())
	if err != nil {
		t.Fatalf("failed to start tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	if _, err := tr.Write("a.txt", []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tracker.LastWrite("a.txt").IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("tracker never observed the write")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestQuiescent(t *testing.T) {
	tr := newTestTier(t, Config{})

	tracker, err := NewWriteTracker(tr.Root())
	if err != nil {
		t.Fatalf("failed to start tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	// No tracked write: the file mtime decides.
	if tracker.Quiescent("cold.txt", base, window, base.Add(30*time.Second)) {
		t.Error("file modified 30s ago should not be quiescent with a 1m window")
	}
	if !tracker.Quiescent("cold.txt", base, window, base.Add(2*time.Minute)) {
		t.Error("file modified 2m ago should be quiescent")
	}

	// A tracked write newer than the mtime wins.
	tracker.mu.Lock()
	tracker.writes["hot.txt"] = base.Add(90 * time.Second)
	tracker.mu.Unlock()

	if tracker.Quiescent("hot.txt", base, window, base.Add(2*time.Minute)) {
		t.Error("recently written file should not be quiescent")
	}
	if !tracker.Quiescent("hot.txt", base, window, base.Add(3*time.Minute)) {
		t.Error("file should become quiescent once the window passes")
	}
}

func TestForget(t *testing.T) {
	tr := newTestTier(t, Config{})

	tracker, err := NewWriteTracker(tr.Root())
	if err != nil {
		t.Fatalf("failed to start tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	tracker.record("a.txt")
	if tracker.LastWrite("a.txt").IsZero() {
		t.Fatal("record did not register")
	}
	tracker.Forget("a.txt")
	if !tracker.LastWrite("a.txt").IsZero() {
		t.Error("forget did not clear the entry")
	}
}

func TestWriteTrackerWatchesNewDirectories(t *testing.T) {
	tr := newTestTier(t, Config{})

	tracker, err := NewWriteTracker(tr.Root())
	if err != nil {
		t.Fatalf("failed to start tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })

	if _, err := tr.MkdirAll("sub"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the tracker a moment to add the new watch.
	time.Sleep(100 * time.Millisecond)

	if _, err := tr.Write("sub/a.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tracker.LastWrite("sub/a.txt").IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("tracker never observed the write in the new directory")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
