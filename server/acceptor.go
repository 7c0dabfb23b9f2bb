// File: server/acceptor.go
// Listening-socket readiness handling and connection handoff.
// License: Apache-2.0

package server

import (
	"golang.org/x/sys/unix"

	"github.com/evloop/evloop/internal/netutil"
	"github.com/evloop/evloop/poller"
)

// acceptor owns the listening descriptor on one boss loop. On each
// acceptable readiness event it accepts a bounded batch and hands every new
// connection to a worker loop selected round-robin.
type acceptor struct {
	s   *Server
	lfd int
}

// onAcceptable runs on the boss loop thread.
func (a *acceptor) onAcceptable(ev poller.Event) {
	if ev.Hup {
		// the listener itself went bad; stop the server from a safe goroutine
		a.s.log.Error("listening socket failed")
		go a.s.Shutdown()
		return
	}
	for i := 0; i < a.s.cfg.AcceptBatch; i++ {
		fd, err := netutil.Accept(a.lfd)
		if err != nil {
			switch err {
			case unix.EAGAIN: // == EWOULDBLOCK on this platform
				return // batch drained
			case unix.ECONNABORTED, unix.EINTR:
				continue // peer vanished between readiness and accept
			default:
				a.s.metrics.AcceptErrors.Inc()
				a.s.log.WithError(err).Warn("accept failed")
				return
			}
		}
		_ = netutil.SetNoDelay(fd)
		a.s.metrics.ConnectionsAccepted.Inc()
		worker := a.s.workers.Next()
		if err := worker.Attach(fd, a.s.buildPipeline); err != nil {
			// worker already draining; the connection cannot be served
			unix.Close(fd)
		}
	}
}
