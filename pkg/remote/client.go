// Package remote defines the client contract for the remote object
// store tier. Implementations own their retry/backoff policy; callers
// see only the shared error taxonomy.
package remote

import (
	"context"

	"github.com/marmos91/tierfs/pkg/tier"
)

// Client is the remote tier contract. Paths are slash-separated and
// relative to the remote root (the configured bucket/prefix).
//
// Error contract:
//   - missing paths yield ErrNotFound
//   - connection loss yields ErrRemoteUnavailable (retryable)
//   - provider throttling yields ErrQuotaExceeded (retryable with backoff)
type Client interface {
	// List returns the immediate children of path. Listing a missing
	// directory returns ErrNotFound; listing an empty one returns an
	// empty slice.
	List(ctx context.Context, path string) ([]tier.Entry, error)

	// Stat returns the entry for path.
	Stat(ctx context.Context, path string) (tier.Entry, error)

	// Read returns length bytes starting at offset. length < 0 reads
	// to the end of the object.
	Read(ctx context.Context, path string, offset, length int64) ([]byte, error)

	// Write stores data at path, creating or replacing the object, and
	// returns the resulting entry.
	Write(ctx context.Context, path string, data []byte) (tier.Entry, error)

	// Move renames an object and returns the entry at its new path.
	Move(ctx context.Context, path, newPath string) (tier.Entry, error)

	// Delete removes the object at path. Deleting a missing path
	// returns ErrNotFound.
	Delete(ctx context.Context, path string) error

	// HealthCheck verifies the remote store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases client resources.
	Close() error
}
