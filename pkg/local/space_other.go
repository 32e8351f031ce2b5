//go:build !linux && !darwin

package local

import "errors"

// FreeSpace is unsupported on this platform; the floor check is skipped.
func (defaultProber) FreeSpace(path string) (uint64, error) {
	return 0, errors.New("free space probe not supported on this platform")
}
