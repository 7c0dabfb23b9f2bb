// File: poller/poller.go
// Platform-neutral readiness multiplexer contract.
// License: Apache-2.0

package poller

import (
	"errors"
	"time"
)

// ErrClosed is returned by Wait after Close has been called.
var ErrClosed = errors.New("poller: closed")

// Interest selects which readiness kinds a descriptor is watched for.
// A listening socket watched with Readable reports pending connections.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

// Event is one readiness notification returned by Wait.
// Hup marks descriptors invalidated at the OS level (EPOLLERR/EPOLLHUP,
// EV_EOF); the owner must deregister and close them.
type Event struct {
	FD       int
	Readable bool
	Writable bool
	Hup      bool
}

// Poller multiplexes readiness across the descriptors of one event loop.
//
// Wait blocks the calling goroutine until at least one descriptor is ready,
// the timeout elapses, or Wake is called, and fills events with a finite
// batch to amortize syscall cost. timeout < 0 blocks indefinitely.
type Poller interface {
	Add(fd int, in Interest) error
	Mod(fd int, in Interest) error
	Del(fd int) error
	Wait(events []Event, timeout time.Duration) (int, error)

	// Wake interrupts a parked Wait. Safe from any goroutine.
	Wake() error

	Close() error
}
