// File: pipeline/echo.go
// Byte-for-byte echo application stage.
// License: Apache-2.0

package pipeline

// Echo is the innermost application stage: every inbound byte sequence is
// scheduled outbound unchanged, preserving order. It copies the inbound
// slice because the loop reuses its read buffer between events.
type Echo struct {
	Base
}

// NewEcho returns an echo stage.
func NewEcho() *Echo { return &Echo{} }

// OnInbound echoes exactly the received bytes back through the chain.
func (e *Echo) OnInbound(ctx *Context, data []byte) {
	out := make([]byte, len(data))
	copy(out, data)
	ctx.Write(out)
}
