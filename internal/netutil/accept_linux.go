//go:build linux

// File: internal/netutil/accept_linux.go
// License: Apache-2.0

package netutil

import "golang.org/x/sys/unix"

// Accept accepts one pending connection from a non-blocking listener and
// returns the new descriptor already in non-blocking mode.
func Accept(lfd int) (int, error) {
	fd, _, err := unix.Accept4(lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return fd, err
}
