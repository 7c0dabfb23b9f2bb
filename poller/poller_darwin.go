//go:build darwin

// File: poller/poller_darwin.go
// kqueue(2) implementation with a self-pipe wakeup channel.
// License: Apache-2.0

package poller

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq     int
	wr     int // pipe write end, hit by Wake
	rd     int // pipe read end, registered with the kqueue
	closed atomic.Bool
}

// New creates a kqueue-based Poller.
func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	var pfds [2]int
	if err := unix.Pipe(pfds[:]); err != nil {
		unix.Close(kq)
		return nil, err
	}
	rd, wr := pfds[0], pfds[1]
	_ = unix.SetNonblock(rd, true)
	_ = unix.SetNonblock(wr, true)
	kev := unix.Kevent_t{
		Ident:  uint64(rd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		unix.Close(rd)
		unix.Close(wr)
		unix.Close(kq)
		return nil, err
	}
	return &kqueuePoller{kq: kq, wr: wr, rd: rd}, nil
}

func interestChanges(fd int, in Interest) []unix.Kevent_t {
	// kqueue has no modify; re-adding replaces, deleting drops the filter.
	changes := make([]unix.Kevent_t, 0, 2)
	rflags := uint16(unix.EV_DELETE)
	if in&Readable != 0 {
		rflags = unix.EV_ADD
	}
	wflags := uint16(unix.EV_DELETE)
	if in&Writable != 0 {
		wflags = unix.EV_ADD
	}
	changes = append(changes,
		unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: rflags},
		unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: wflags},
	)
	return changes
}

func (p *kqueuePoller) Add(fd int, in Interest) error {
	changes := make([]unix.Kevent_t, 0, 2)
	if in&Readable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD})
	}
	if in&Writable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Mod(fd int, in Interest) error {
	_, err := unix.Kevent(p.kq, interestChanges(fd, in), nil, nil)
	if err == unix.ENOENT {
		// deleting a filter that was never added
		return nil
	}
	return err
}

func (p *kqueuePoller) Del(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *kqueuePoller) Wait(events []Event, timeout time.Duration) (int, error) {
	raw := make([]unix.Kevent_t, len(events)+1)
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	for {
		if p.closed.Load() {
			return 0, ErrClosed
		}
		n, err := unix.Kevent(p.kq, nil, raw, ts)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		out := 0
		for i := 0; i < n; i++ {
			kev := raw[i]
			fd := int(kev.Ident)
			if fd == p.rd {
				p.drainWake()
				continue
			}
			if out == len(events) {
				// more ready descriptors than slots; level-triggered
				// polling re-reports the overflow on the next Wait
				break
			}
			ev := Event{FD: fd}
			switch kev.Filter {
			case unix.EVFILT_READ:
				ev.Readable = true
			case unix.EVFILT_WRITE:
				ev.Writable = true
			}
			if kev.Flags&unix.EV_EOF != 0 {
				ev.Hup = true
			}
			events[out] = ev
			out++
		}
		return out, nil
	}
}

func (p *kqueuePoller) Wake() error {
	var b = [1]byte{1}
	_, err := unix.Write(p.wr, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (p *kqueuePoller) drainWake() {
	var buf [64]byte
	for {
		if _, err := unix.Read(p.rd, buf[:]); err != nil {
			return
		}
	}
}

func (p *kqueuePoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	unix.Close(p.rd)
	unix.Close(p.wr)
	return unix.Close(p.kq)
}
