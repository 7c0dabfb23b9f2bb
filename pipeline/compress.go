// File: pipeline/compress.go
// Optional Snappy block-framing stage.
// License: Apache-2.0

package pipeline

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/s2"
)

// maxFrame bounds a single compressed frame so a corrupt or hostile length
// prefix cannot force an unbounded allocation.
const maxFrame = 16 << 20

// Snappy compresses outbound data into length-prefixed S2 blocks and
// decompresses inbound frames back into raw byte sequences. It is not part
// of the default echo chain; both peers must mount it for the framing to
// line up.
type Snappy struct {
	Base
	pending []byte // unparsed inbound tail carried between events
}

// NewSnappy returns a snappy framing stage.
func NewSnappy() *Snappy { return &Snappy{} }

// OnOutbound frames and compresses data toward the socket.
func (s *Snappy) OnOutbound(ctx *Context, data []byte) {
	block := s2.Encode(nil, data)
	frame := make([]byte, 0, len(block)+binary.MaxVarintLen32)
	frame = binary.AppendUvarint(frame, uint64(len(block)))
	frame = append(frame, block...)
	ctx.Write(frame)
}

// OnInbound reassembles frames across readiness events and forwards each
// decompressed payload.
func (s *Snappy) OnInbound(ctx *Context, data []byte) {
	s.pending = append(s.pending, data...)
	for {
		size, n := binary.Uvarint(s.pending)
		if n == 0 {
			return // need more bytes for the length prefix
		}
		if n < 0 || size > maxFrame {
			ctx.FireError(fmt.Errorf("snappy: invalid frame length"))
			return
		}
		if uint64(len(s.pending)-n) < size {
			return // frame body incomplete
		}
		block := s.pending[n : n+int(size)]
		plain, err := s2.Decode(nil, block)
		if err != nil {
			ctx.FireError(fmt.Errorf("snappy: decode: %w", err))
			return
		}
		s.pending = s.pending[n+int(size):]
		ctx.FireInbound(plain)
	}
}

// OnInactive drops any partial frame.
func (s *Snappy) OnInactive(ctx *Context) {
	s.pending = nil
	ctx.FireInactive()
}
