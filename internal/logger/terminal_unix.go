//go:build linux || darwin

package logger

import "golang.org/x/sys/unix"

// isTerminal reports whether the file descriptor is attached to a terminal.
func isTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), termiosRequest)
	return err == nil
}
