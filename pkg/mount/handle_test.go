package mount

import (
	"context"
	"errors"
	"testing"
	"time"

	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

func TestLifecycle(t *testing.T) {
	h := NewHandle("local")

	if h.State() != Unmounted {
		t.Fatalf("initial state = %v", h.State())
	}

	h.Begin()
	if h.State() != Mounting {
		t.Fatalf("state after Begin = %v", h.State())
	}
	if err := h.CheckReady(); !tiererrors.HasCode(err, tiererrors.ErrNotReady) {
		t.Errorf("CheckReady while mounting: %v, want NotReady", err)
	}

	h.MarkReady()
	if !h.IsReady() {
		t.Fatal("not ready after MarkReady")
	}
	if err := h.CheckReady(); err != nil {
		t.Errorf("CheckReady when ready: %v", err)
	}

	h.Teardown()
	if h.State() != Unmounted {
		t.Fatalf("state after Teardown = %v", h.State())
	}
}

func TestMarkFailed(t *testing.T) {
	h := NewHandle("remote")
	h.Begin()

	cause := errors.New("bucket unreachable")
	h.MarkFailed(cause)

	if h.State() != Failed {
		t.Fatalf("state = %v", h.State())
	}
	if !errors.Is(h.Err(), cause) {
		t.Errorf("Err = %v", h.Err())
	}

	// Failed is terminal until Begin restarts the attachment.
	h.MarkReady()
	if h.State() != Failed {
		t.Error("MarkReady overrode Failed")
	}

	h.Begin()
	if h.State() != Mounting || h.Err() != nil {
		t.Errorf("restart: state = %v, err = %v", h.State(), h.Err())
	}
	h.MarkReady()
	if !h.IsReady() {
		t.Error("not ready after restart")
	}
}

func TestWaitReady(t *testing.T) {
	h := NewHandle("remote")
	h.Begin()

	done := make(chan error, 1)
	go func() {
		done <- h.WaitReady(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("WaitReady returned before settling")
	case <-time.After(20 * time.Millisecond):
	}

	h.MarkReady()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitReady = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return after MarkReady")
	}
}

func TestWaitReadyFailure(t *testing.T) {
	h := NewHandle("remote")
	h.Begin()

	cause := errors.New("mount failed")
	go h.MarkFailed(cause)

	if err := h.WaitReady(context.Background()); !errors.Is(err, cause) {
		t.Errorf("WaitReady = %v, want mount error", err)
	}
}

func TestWaitReadyContextCancel(t *testing.T) {
	h := NewHandle("remote")
	h.Begin()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := h.WaitReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitReady = %v, want deadline exceeded", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Unmounted: "unmounted",
		Mounting:  "mounting",
		Ready:     "ready",
		Failed:    "failed",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
