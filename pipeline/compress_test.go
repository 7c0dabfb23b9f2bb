// File: pipeline/compress_test.go
// License: Apache-2.0

package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sink captures what reaches the application side of the chain.
type sink struct {
	Base
	inbound [][]byte
}

func (s *sink) OnInbound(ctx *Context, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.inbound = append(s.inbound, cp)
}

func TestSnappyRoundTrip(t *testing.T) {
	// encoder side: outbound plaintext becomes framed blocks on the wire
	enc := &fakeTransport{}
	encPipe := New(enc, []Handler{NewSnappy()})

	payload := bytes.Repeat([]byte("reactor pattern "), 1000)
	encPipe.Write(payload)
	require.Len(t, enc.writes, 1)
	frame := enc.writes[0]
	assert.Less(t, len(frame), len(payload), "repetitive payload should compress")

	// decoder side: the framed bytes come back out as the original payload
	dec := &fakeTransport{}
	app := &sink{}
	decPipe := New(dec, []Handler{NewSnappy(), app})

	decPipe.FireInbound(frame)
	require.Len(t, app.inbound, 1)
	assert.Equal(t, payload, app.inbound[0])
}

func TestSnappyReassemblesFragments(t *testing.T) {
	enc := &fakeTransport{}
	encPipe := New(enc, []Handler{NewSnappy()})
	encPipe.Write([]byte("first"))
	encPipe.Write([]byte("second"))

	var wire []byte
	for _, w := range enc.writes {
		wire = append(wire, w...)
	}

	dec := &fakeTransport{}
	app := &sink{}
	decPipe := New(dec, []Handler{NewSnappy(), app})

	// deliver one byte at a time, as a pathological readiness pattern would
	for i := range wire {
		decPipe.FireInbound(wire[i : i+1])
	}

	require.Len(t, app.inbound, 2)
	assert.Equal(t, []byte("first"), app.inbound[0])
	assert.Equal(t, []byte("second"), app.inbound[1])
}

func TestSnappyRejectsCorruptFrame(t *testing.T) {
	dec := &fakeTransport{}
	decPipe := New(dec, []Handler{NewSnappy(), &sink{}})

	// huge length prefix must be rejected before any allocation
	decPipe.FireInbound([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f})
	assert.True(t, dec.closed)
}
