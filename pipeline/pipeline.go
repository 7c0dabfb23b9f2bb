// File: pipeline/pipeline.go
// Fixed-order stage chain and the per-stage dispatch context.
// License: Apache-2.0

package pipeline

// Transport is the byte sink beneath the head of the chain. The event loop's
// connection type implements it; tests substitute fakes.
type Transport interface {
	// ID identifies the connection for log correlation.
	ID() string

	// RemoteAddr reports the peer address.
	RemoteAddr() string

	// QueueWrite schedules raw outbound bytes without blocking. Bytes that
	// cannot be written immediately are retained and flushed on the next
	// writable readiness event, in order.
	QueueWrite(p []byte) error

	// Close tears the transport down; the pipeline's inactive event follows.
	Close(err error)

	// Execute runs fn on the transport's owning event loop.
	Execute(fn func())
}

// Builder produces the ordered stage list for one accepted connection.
// It is invoked exactly once per connection; the result is immutable.
type Builder func(t Transport) []Handler

// Pipeline is the ordered chain of stages for a single connection.
type Pipeline struct {
	t    Transport
	ctxs []*Context
}

// New assembles a pipeline over t. An empty handler list is legal and makes
// the pipeline a sink: inbound data is dropped, outbound goes straight to t.
func New(t Transport, handlers []Handler) *Pipeline {
	p := &Pipeline{t: t, ctxs: make([]*Context, len(handlers))}
	for i, h := range handlers {
		p.ctxs[i] = &Context{p: p, h: h, idx: i}
	}
	return p
}

// Transport returns the byte sink this pipeline is mounted on.
func (p *Pipeline) Transport() Transport { return p.t }

// FireActive enters the lifecycle chain at the head.
func (p *Pipeline) FireActive() {
	if len(p.ctxs) == 0 {
		return
	}
	c := p.ctxs[0]
	c.h.OnActive(c)
}

// FireInactive enters the teardown chain at the head.
func (p *Pipeline) FireInactive() {
	if len(p.ctxs) == 0 {
		return
	}
	c := p.ctxs[0]
	c.h.OnInactive(c)
}

// FireInbound pushes received bytes into the head stage.
func (p *Pipeline) FireInbound(data []byte) {
	if len(p.ctxs) == 0 {
		return
	}
	c := p.ctxs[0]
	c.h.OnInbound(c, data)
}

// FireError enters the error chain at the head.
func (p *Pipeline) FireError(err error) {
	if len(p.ctxs) == 0 {
		return
	}
	c := p.ctxs[0]
	c.h.OnError(c, err)
}

// Write enters the encode chain at the tail, as if the application beyond
// the last stage had produced data.
func (p *Pipeline) Write(data []byte) {
	if len(p.ctxs) == 0 {
		p.queue(data)
		return
	}
	c := p.ctxs[len(p.ctxs)-1]
	c.h.OnOutbound(c, data)
}

func (p *Pipeline) queue(data []byte) {
	if err := p.t.QueueWrite(data); err != nil {
		p.t.Close(err)
	}
}

// Context binds one stage to its position in the chain. The Fire methods
// propagate toward the tail, Write propagates toward the head.
type Context struct {
	p   *Pipeline
	h   Handler
	idx int
}

// Transport returns the underlying byte sink.
func (c *Context) Transport() Transport { return c.p.t }

// Execute runs fn on the connection's owning event loop.
func (c *Context) Execute(fn func()) { c.p.t.Execute(fn) }

// FireActive passes the active event to the next stage.
func (c *Context) FireActive() {
	if n := c.next(); n != nil {
		n.h.OnActive(n)
	}
}

// FireInactive passes the inactive event to the next stage.
func (c *Context) FireInactive() {
	if n := c.next(); n != nil {
		n.h.OnInactive(n)
	}
}

// FireInbound passes data to the next stage in the decode direction.
// The last stage is the application; data it does not consume is dropped.
func (c *Context) FireInbound(data []byte) {
	if n := c.next(); n != nil {
		n.h.OnInbound(n, data)
	}
}

// FireError passes err to the next stage.
func (c *Context) FireError(err error) {
	if n := c.next(); n != nil {
		n.h.OnError(n, err)
		return
	}
	// an error that reached the tail unhandled closes the connection
	c.p.t.Close(err)
}

// Write passes data to the previous stage in the encode direction. At the
// head it reaches the transport's deferred-write queue.
func (c *Context) Write(data []byte) {
	if c.idx == 0 {
		c.p.queue(data)
		return
	}
	prev := c.p.ctxs[c.idx-1]
	prev.h.OnOutbound(prev, data)
}

// Close tears down the underlying transport.
func (c *Context) Close(err error) { c.p.t.Close(err) }

func (c *Context) next() *Context {
	if c.idx+1 < len(c.p.ctxs) {
		return c.p.ctxs[c.idx+1]
	}
	return nil
}
