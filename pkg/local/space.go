package local

// SpaceProber reports available bytes on the filesystem holding a path.
// The default probe uses statfs; tests substitute a fixed value.
type SpaceProber interface {
	FreeSpace(path string) (uint64, error)
}

type defaultProber struct{}

// FixedProber is a SpaceProber returning a constant value. Used by
// tests to exercise the free-space floor without filling a disk.
type FixedProber struct {
	Free uint64
	Err  error
}

// FreeSpace implements SpaceProber.
func (p FixedProber) FreeSpace(string) (uint64, error) {
	return p.Free, p.Err
}
