//go:build darwin

// File: internal/netutil/accept_darwin.go
// License: Apache-2.0

package netutil

import "golang.org/x/sys/unix"

// Accept accepts one pending connection from a non-blocking listener and
// returns the new descriptor already in non-blocking mode.
func Accept(lfd int) (int, error) {
	fd, _, err := unix.Accept(lfd)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
