package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

var opContextKey = contextKey{}

// OpContext holds operation-scoped logging context. The union view and
// the migration scheduler attach one to the request context so every
// log line produced downstream carries the same identifiers.
type OpContext struct {
	Operation string    // read, write, list, rename, delete, transfer, ...
	Tier      string    // local, remote, union
	Path      string    // union-namespace path
	CycleID   string    // migration cycle ID, when inside one
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context carrying the given OpContext.
func WithContext(ctx context.Context, oc *OpContext) context.Context {
	return context.WithValue(ctx, opContextKey, oc)
}

// FromContext retrieves the OpContext, or nil if not present.
func FromContext(ctx context.Context) *OpContext {
	if ctx == nil {
		return nil
	}
	oc, _ := ctx.Value(opContextKey).(*OpContext)
	return oc
}

// NewOpContext creates an OpContext for a named operation.
func NewOpContext(operation, path string) *OpContext {
	return &OpContext{
		Operation: operation,
		Path:      path,
		StartTime: time.Now(),
	}
}

// DurationMs returns the duration since StartTime in milliseconds.
func (oc *OpContext) DurationMs() float64 {
	if oc == nil || oc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(oc.StartTime).Microseconds()) / 1000.0
}
