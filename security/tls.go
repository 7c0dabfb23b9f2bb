// File: security/tls.go
// TLS pipeline stage.
// License: Apache-2.0

package security

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evloop/evloop/internal/concurrency"
	"github.com/evloop/evloop/pipeline"
)

// ErrStageClosed is reported by the in-memory conn once the stage has been
// torn down.
var ErrStageClosed = errors.New("security: stage closed")

// Handler is the transport-security stage. One instance serves exactly one
// connection; the Builder must construct a fresh Handler per accept.
type Handler struct {
	pipeline.Base

	cfg *tls.Config
	log *logrus.Entry

	mem    *memConn
	tconn  *tls.Conn
	outq   *concurrency.BlockingQueue[[]byte]
	closed atomic.Bool
}

// NewHandler creates a stage for one connection. cfg carries the server
// certificate and key; it is shared, the stage never mutates it.
func NewHandler(cfg *tls.Config, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{cfg: cfg, log: log}
}

// OnActive wires the TLS engine over the raw byte stream and starts the two
// pump goroutines, then lets the active event continue down the chain.
func (h *Handler) OnActive(ctx *pipeline.Context) {
	h.mem = newMemConn(ctx)
	h.tconn = tls.Server(h.mem, h.cfg)
	h.outq = concurrency.NewBlockingQueue[[]byte]()

	go h.readLoop(ctx)
	go h.writeLoop(ctx)

	ctx.FireActive()
}

// OnInbound feeds ciphertext from the socket into the engine.
func (h *Handler) OnInbound(ctx *pipeline.Context, data []byte) {
	h.mem.feed(data)
}

// OnOutbound queues plaintext for encryption. The pump writes it through
// the engine, which emits ciphertext back onto the loop.
func (h *Handler) OnOutbound(ctx *pipeline.Context, data []byte) {
	if !h.outq.Put(data) {
		ctx.Close(ErrStageClosed)
	}
}

// OnInactive releases the engine and both pumps.
func (h *Handler) OnInactive(ctx *pipeline.Context) {
	h.teardown()
	ctx.FireInactive()
}

func (h *Handler) teardown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.outq.Close()
	h.mem.close()
	_ = h.tconn.Close()
}

// readLoop pumps decrypted plaintext back onto the event loop. The first
// Read also drives the handshake.
func (h *Handler) readLoop(ctx *pipeline.Context) {
	buf := make([]byte, 32<<10)
	for {
		n, err := h.tconn.Read(buf)
		if n > 0 {
			plain := make([]byte, n)
			copy(plain, buf[:n])
			ctx.Execute(func() { ctx.FireInbound(plain) })
		}
		if err != nil {
			h.fail(ctx, err)
			return
		}
	}
}

// writeLoop encrypts queued plaintext in order.
func (h *Handler) writeLoop(ctx *pipeline.Context) {
	for {
		p, ok := h.outq.Take()
		if !ok {
			return
		}
		if _, err := h.tconn.Write(p); err != nil {
			h.fail(ctx, err)
			return
		}
	}
}

// fail reports an engine error into the pipeline unless the stage is
// already being torn down.
func (h *Handler) fail(ctx *pipeline.Context, err error) {
	if h.closed.Load() || err == io.EOF {
		return
	}
	h.log.WithError(err).Debug("tls engine error")
	ctx.Execute(func() { ctx.FireError(err) })
}

// memConn is the in-memory net.Conn the TLS engine runs over. Reads block
// only the pump goroutines; writes hand ciphertext back to the event loop
// and never block.
type memConn struct {
	ctx *pipeline.Context

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

func newMemConn(ctx *pipeline.Context) *memConn {
	m := &memConn{ctx: ctx}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// feed appends ciphertext received from the socket. Runs on the loop thread.
func (m *memConn) feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.buf = append(m.buf, p...)
	m.cond.Signal()
}

// Read blocks until ciphertext is available or the conn closes.
func (m *memConn) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

// Write schedules ciphertext produced by the engine onto the loop, toward
// the socket.
func (m *memConn) Write(p []byte) (int, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return 0, ErrStageClosed
	}
	out := make([]byte, len(p))
	copy(out, p)
	ctx := m.ctx
	ctx.Execute(func() { ctx.Write(out) })
	return len(p), nil
}

func (m *memConn) close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *memConn) Close() error { m.close(); return nil }

func (m *memConn) LocalAddr() net.Addr  { return memAddr{} }
func (m *memConn) RemoteAddr() net.Addr { return memAddr{} }

// Deadlines are unused: the engine's reads are bounded by connection
// teardown, not timers.
func (m *memConn) SetDeadline(time.Time) error      { return nil }
func (m *memConn) SetReadDeadline(time.Time) error  { return nil }
func (m *memConn) SetWriteDeadline(time.Time) error { return nil }

type memAddr struct{}

func (memAddr) Network() string { return "mem" }
func (memAddr) String() string  { return "mem" }
