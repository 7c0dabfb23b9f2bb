// File: eventloop/conn.go
// Connection state machine: non-blocking reads, deferred ordered writes.
// License: Apache-2.0

package eventloop

import (
	"io"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/evloop/evloop/internal/netutil"
	"github.com/evloop/evloop/pipeline"
	"github.com/evloop/evloop/poller"
)

// Conn is one accepted socket, owned exclusively by the loop it was attached
// to. Every method except Execute must run on that loop's thread; the
// pipeline guarantees this for its stages.
type Conn struct {
	id     string
	fd     int
	remote string
	loop   *Loop
	pipe   *pipeline.Pipeline

	// deferred outbound data, flushed on writable readiness
	pending *queue.Queue // of []byte
	woff    int          // bytes of the queue head already written
	wantW   bool         // write interest currently registered
	closed  bool
}

// Attach takes ownership of fd: the loop registers it with its multiplexer,
// builds the pipeline once via builder, and fires the active event. Safe
// from any goroutine; the work itself runs on the loop thread.
func (l *Loop) Attach(fd int, builder pipeline.Builder) error {
	return l.Execute(func() {
		c := &Conn{
			id:      uuid.NewString(),
			fd:      fd,
			remote:  netutil.RemoteAddr(fd),
			loop:    l,
			pending: queue.New(),
		}
		c.pipe = pipeline.New(c, builder(c))
		if err := l.pl.Add(fd, poller.Readable); err != nil {
			l.log.WithError(err).Warn("register connection failed")
			unix.Close(fd)
			return
		}
		l.conns[fd] = c
		l.opts.Metrics.ConnectionsActive.Inc()
		c.pipe.FireActive()
	})
}

// ID returns the connection's correlation ID.
func (c *Conn) ID() string { return c.id }

// RemoteAddr reports the peer address.
func (c *Conn) RemoteAddr() string { return c.remote }

// Execute runs fn on the owning loop.
func (c *Conn) Execute(fn func()) { _ = c.loop.Execute(fn) }

// Pipeline returns the connection's stage chain.
func (c *Conn) Pipeline() *pipeline.Pipeline { return c.pipe }

// onReadable drains the socket until it would block, feeding each batch of
// bytes into the pipeline.
func (c *Conn) onReadable() {
	for !c.closed {
		n, err := unix.Read(c.fd, c.loop.readBuf)
		if n > 0 {
			c.loop.opts.Metrics.BytesRead.Add(float64(n))
			c.pipe.FireInbound(c.loop.readBuf[:n])
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			c.fail(err)
			return
		}
		if n == 0 {
			// orderly peer shutdown
			c.close(nil)
			return
		}
	}
}

// QueueWrite schedules p for transmission after anything already pending.
// It writes as much as the socket accepts immediately and retains the rest
// for the next writable readiness event. Implements pipeline.Transport.
func (c *Conn) QueueWrite(p []byte) error {
	if c.closed {
		return ErrConnClosed
	}
	if len(p) == 0 {
		return nil
	}
	c.pending.Add(p)
	c.flush()
	return nil
}

// onWritable resumes the deferred-write queue.
func (c *Conn) onWritable() {
	c.flush()
}

func (c *Conn) flush() {
	for !c.closed && c.pending.Length() > 0 {
		head := c.pending.Peek().([]byte)
		n, err := unix.Write(c.fd, head[c.woff:])
		if n > 0 {
			c.loop.opts.Metrics.BytesWritten.Add(float64(n))
			c.woff += n
			if c.woff == len(head) {
				c.pending.Remove()
				c.woff = 0
				continue
			}
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				c.setWriteInterest(true)
				return
			}
			c.fail(err)
			return
		}
		if n == 0 {
			c.setWriteInterest(true)
			return
		}
	}
	if !c.closed {
		c.setWriteInterest(false)
	}
}

func (c *Conn) setWriteInterest(want bool) {
	if c.wantW == want {
		return
	}
	in := poller.Readable
	if want {
		in |= poller.Writable
	}
	if err := c.loop.pl.Mod(c.fd, in); err != nil {
		c.fail(err)
		return
	}
	c.wantW = want
}

// fail records a per-connection error and tears the connection down. The
// failure stays inside this connection: the loop and its other connections
// are unaffected.
func (c *Conn) fail(err error) {
	c.loop.opts.Metrics.ConnectionErrors.Inc()
	c.loop.log.WithField("conn", c.id).WithError(err).Debug("connection error")
	c.close(err)
}

// Close tears the connection down. Must run on the owning loop thread;
// stages off the loop use Execute first. Implements pipeline.Transport.
func (c *Conn) Close(err error) { c.close(err) }

func (c *Conn) close(err error) {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.loop.pl.Del(c.fd)
	if err != nil && err != io.EOF {
		c.pipe.FireError(err)
	}
	c.pipe.FireInactive()
	unix.Close(c.fd)
	delete(c.loop.conns, c.fd)
	c.loop.opts.Metrics.ConnectionsActive.Dec()
}
