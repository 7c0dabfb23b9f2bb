//go:build linux

// File: poller/poller_linux.go
// epoll(7) implementation with an eventfd wakeup channel.
// License: Apache-2.0

package poller

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd   int
	wakefd int // eventfd registered for wakeups
	closed atomic.Bool
}

// New creates an epoll-based Poller.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	return &epollPoller{epfd: epfd, wakefd: wakefd}, nil
}

func epollFlags(in Interest) uint32 {
	var flags uint32
	if in&Readable != 0 {
		flags |= unix.EPOLLIN
	}
	if in&Writable != 0 {
		flags |= unix.EPOLLOUT
	}
	return flags
}

func (p *epollPoller) Add(fd int, in Interest) error {
	ev := &unix.EpollEvent{Events: epollFlags(in), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollPoller) Mod(fd int, in Interest) error {
	ev := &unix.EpollEvent{Events: epollFlags(in), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *epollPoller) Del(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(events []Event, timeout time.Duration) (int, error) {
	raw := make([]unix.EpollEvent, len(events)+1) // +1 leaves room for the wakeup fd
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	for {
		if p.closed.Load() {
			return 0, ErrClosed
		}
		n, err := unix.EpollWait(p.epfd, raw, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		out := 0
		for i := 0; i < n; i++ {
			ev := raw[i]
			if int(ev.Fd) == p.wakefd {
				p.drainWake()
				continue
			}
			if out == len(events) {
				// more ready descriptors than slots; level-triggered
				// polling re-reports the overflow on the next Wait
				break
			}
			events[out] = Event{
				FD:       int(ev.Fd),
				Readable: ev.Events&unix.EPOLLIN != 0,
				Writable: ev.Events&unix.EPOLLOUT != 0,
				Hup:      ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
			}
			out++
		}
		return out, nil
	}
}

func (p *epollPoller) Wake() error {
	one := [8]byte{1, 0, 0, 0, 0, 0, 0, 0} // native-endian eventfd increment
	_, err := unix.Write(p.wakefd, one[:])
	if err == unix.EAGAIN {
		// counter saturated, a wakeup is already pending
		return nil
	}
	return err
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			return
		}
	}
}

func (p *epollPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	unix.Close(p.wakefd)
	return unix.Close(p.epfd)
}
