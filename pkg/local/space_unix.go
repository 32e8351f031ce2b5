//go:build linux || darwin

package local

import "golang.org/x/sys/unix"

// FreeSpace reports the bytes available to unprivileged callers on the
// filesystem holding path.
func (defaultProber) FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
