// File: internal/netutil/socket.go
// Raw socket helpers shared by the acceptor and connections.
// License: Apache-2.0

package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// SetNonblock puts fd into non-blocking mode.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// SetNoDelay disables Nagle's algorithm on a TCP socket.
func SetNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// Listen opens a non-blocking listening TCP socket bound to address with the
// given backlog. It returns only after the OS confirms the socket is
// listening, so a bind or listen failure is reported synchronously.
func Listen(address string, backlog int) (fd int, err error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return -1, fmt.Errorf("netutil: resolve %q: %w", address, err)
	}
	family := unix.AF_INET
	if addr.IP != nil && addr.IP.To4() == nil {
		family = unix.AF_INET6
	}
	fd, err = unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: nonblock: %w", err)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
		}
	}()
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return -1, fmt.Errorf("netutil: SO_REUSEADDR: %w", err)
	}
	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		sa6 := &unix.SockaddrInet6{Port: addr.Port}
		if addr.IP != nil {
			copy(sa6.Addr[:], addr.IP.To16())
		}
		sa = sa6
	} else {
		sa4 := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		sa = sa4
	}
	if err = unix.Bind(fd, sa); err != nil {
		return -1, fmt.Errorf("netutil: bind %q: %w", address, err)
	}
	if err = unix.Listen(fd, backlog); err != nil {
		return -1, fmt.Errorf("netutil: listen %q: %w", address, err)
	}
	return fd, nil
}

// LocalPort reports the port a socket is bound to, useful when listening
// on port 0.
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, fmt.Errorf("netutil: unexpected sockaddr %T", sa)
}

// RemoteAddr formats the peer address of a connected socket.
func RemoteAddr(fd int) string {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return ""
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return (&net.TCPAddr{IP: a.Addr[:], Port: a.Port}).String()
	case *unix.SockaddrInet6:
		return (&net.TCPAddr{IP: a.Addr[:], Port: a.Port}).String()
	}
	return ""
}
