// Package mount tracks tier attachment lifecycle. A Handle moves
// through Unmounted, Mounting, Ready, and Failed; the union view gates
// operations on both tiers' handles being Ready.
package mount

import (
	"context"
	"sync"

	"github.com/marmos91/tierfs/internal/logger"
	tiererrors "github.com/marmos91/tierfs/pkg/tier/errors"
)

// State is the lifecycle state of a tier attachment.
type State int

const (
	// Unmounted means attachment has not started.
	Unmounted State = iota

	// Mounting means attachment is in progress.
	Mounting

	// Ready means the tier is serving operations.
	Ready

	// Failed means attachment failed; Err holds the cause.
	Failed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle tracks one tier's attachment state. All methods are safe for
// concurrent use.
type Handle struct {
	name string

	mu    sync.Mutex
	state State
	err   error

	// readyCh closes when the handle settles in Ready or Failed.
	readyCh chan struct{}
}

// NewHandle creates an Unmounted handle. name identifies the tier in
// logs and errors ("local", "remote").
func NewHandle(name string) *Handle {
	return &Handle{
		name:    name,
		readyCh: make(chan struct{}),
	}
}

// Name returns the tier name the handle was created with.
func (h *Handle) Name() string {
	return h.name
}

// Begin moves the handle to Mounting. Restarting a Failed or torn-down
// handle re-arms the ready channel.
func (h *Handle) Begin() {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Ready and Failed closed the channel; a new attachment needs a
	// fresh one.
	if h.state == Ready || h.state == Failed {
		h.readyCh = make(chan struct{})
	}
	h.state = Mounting
	h.err = nil

	logger.Info("Mounting tier", logger.Tier(h.name))
}

// MarkReady settles the handle in Ready.
func (h *Handle) MarkReady() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Ready {
		return
	}
	h.state = Ready
	h.err = nil
	close(h.readyCh)

	logger.Info("Tier ready", logger.Tier(h.name))
}

// MarkFailed settles the handle in Failed with the cause.
func (h *Handle) MarkFailed(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Ready || h.state == Failed {
		return
	}
	h.state = Failed
	h.err = err
	close(h.readyCh)

	logger.Error("Tier mount failed", logger.Tier(h.name), logger.Err(err))
}

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the failure cause, or nil when not Failed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// IsReady reports whether the handle is Ready.
func (h *Handle) IsReady() bool {
	return h.State() == Ready
}

// CheckReady returns nil when Ready and a NotReady error otherwise.
func (h *Handle) CheckReady() error {
	if h.IsReady() {
		return nil
	}
	return tiererrors.NewNotReady(h.name)
}

// WaitReady blocks until the handle settles or ctx is done. It returns
// nil on Ready, the mount error on Failed, and ctx.Err() on timeout.
func (h *Handle) WaitReady(ctx context.Context) error {
	h.mu.Lock()
	ch := h.readyCh
	h.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Failed {
		return h.err
	}
	return nil
}

// Teardown returns the handle to Unmounted. A subsequent Begin re-arms
// it for another attachment.
func (h *Handle) Teardown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	settled := h.state == Ready || h.state == Failed
	h.state = Unmounted
	h.err = nil
	if settled {
		h.readyCh = make(chan struct{})
	}

	logger.Info("Tier unmounted", logger.Tier(h.name))
}
