// File: pipeline/handler.go
// Handler stage contract and the forwarding base stage.
// License: Apache-2.0

package pipeline

// Handler is one stage of a connection's pipeline.
//
// OnInbound receives data flowing from the socket toward the application;
// OnOutbound receives data flowing back toward the socket. A stage may pass
// data through, transform it, emit additional output, or stop propagation by
// simply not forwarding. Slices handed to OnInbound are only valid for the
// duration of the call; stages that retain bytes must copy them.
type Handler interface {
	// OnActive is invoked once when the connection becomes usable.
	OnActive(ctx *Context)

	// OnInactive is invoked once when the connection is torn down. Stages
	// release per-connection resources here.
	OnInactive(ctx *Context)

	// OnInbound processes data in the decode direction.
	OnInbound(ctx *Context, data []byte)

	// OnOutbound processes data in the encode direction.
	OnOutbound(ctx *Context, data []byte)

	// OnError is invoked for connection-scoped failures.
	OnError(ctx *Context, err error)
}

// Base forwards every event unchanged. Embed it to override only the
// callbacks a stage cares about.
type Base struct{}

func (Base) OnActive(ctx *Context)                { ctx.FireActive() }
func (Base) OnInactive(ctx *Context)              { ctx.FireInactive() }
func (Base) OnInbound(ctx *Context, data []byte)  { ctx.FireInbound(data) }
func (Base) OnOutbound(ctx *Context, data []byte) { ctx.Write(data) }
func (Base) OnError(ctx *Context, err error)      { ctx.FireError(err) }
