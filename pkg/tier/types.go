// Package tier defines the shared data model for the two storage tiers
// composed by the union view: entries, kinds, and tier locations.
package tier

import "time"

// Kind distinguishes files from directories in tier listings.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Location indicates which tier(s) hold a path. A path visible in the
// union view resolves to exactly one authoritative tier at any instant;
// LocationBoth means the local copy shadows the remote one.
type Location int

const (
	LocationLocal Location = iota + 1
	LocationRemote
	LocationBoth
)

// String returns a human-readable name for the location.
func (l Location) String() string {
	switch l {
	case LocationLocal:
		return "local"
	case LocationRemote:
		return "remote"
	case LocationBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Entry describes one path in a tier (or in the merged namespace).
type Entry struct {
	// Path is slash-separated and relative to the tier root, never
	// starting with "/". The root itself is the empty string.
	Path string

	Kind    Kind
	Size    uint64
	ModTime time.Time

	// Location is set by the union view; tier-level operations leave
	// it at the producing tier's value.
	Location Location
}

// Name returns the last path element.
func (e Entry) Name() string {
	for i := len(e.Path) - 1; i >= 0; i-- {
		if e.Path[i] == '/' {
			return e.Path[i+1:]
		}
	}
	return e.Path
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}
