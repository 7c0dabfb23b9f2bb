// File: pipeline/pipeline_test.go
// License: Apache-2.0

package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records queued writes and runs Execute inline.
type fakeTransport struct {
	writes   [][]byte
	closed   bool
	closeErr error
	queueErr error
}

func (f *fakeTransport) ID() string         { return "test-conn" }
func (f *fakeTransport) RemoteAddr() string { return "127.0.0.1:1" }
func (f *fakeTransport) QueueWrite(p []byte) error {
	if f.queueErr != nil {
		return f.queueErr
	}
	f.writes = append(f.writes, p)
	return nil
}
func (f *fakeTransport) Close(err error) {
	f.closed = true
	f.closeErr = err
}
func (f *fakeTransport) Execute(fn func()) { fn() }

// tap records every event that passes through it, tagged with its name.
type tap struct {
	Base
	name   string
	events *[]string
}

func (s *tap) OnActive(ctx *Context) {
	*s.events = append(*s.events, s.name+":active")
	ctx.FireActive()
}

func (s *tap) OnInactive(ctx *Context) {
	*s.events = append(*s.events, s.name+":inactive")
	ctx.FireInactive()
}

func (s *tap) OnInbound(ctx *Context, data []byte) {
	*s.events = append(*s.events, s.name+":in:"+string(data))
	ctx.FireInbound(data)
}

func (s *tap) OnOutbound(ctx *Context, data []byte) {
	*s.events = append(*s.events, s.name+":out:"+string(data))
	ctx.Write(data)
}

func (s *tap) OnError(ctx *Context, err error) {
	*s.events = append(*s.events, s.name+":err")
	ctx.FireError(err)
}

func TestEchoIdentity(t *testing.T) {
	ft := &fakeTransport{}
	p := New(ft, []Handler{NewEcho()})

	p.FireInbound([]byte("hello"))
	require.Len(t, ft.writes, 1)
	assert.Equal(t, []byte("hello"), ft.writes[0])
}

func TestEchoCopiesInput(t *testing.T) {
	ft := &fakeTransport{}
	p := New(ft, []Handler{NewEcho()})

	buf := []byte("aaaa")
	p.FireInbound(buf)
	copy(buf, "bbbb") // the loop reuses its read buffer
	assert.Equal(t, []byte("aaaa"), ft.writes[0])
}

func TestStageOrder(t *testing.T) {
	var events []string
	ft := &fakeTransport{}
	p := New(ft, []Handler{
		&tap{name: "first", events: &events},
		&tap{name: "second", events: &events},
		NewEcho(),
	})

	p.FireActive()
	p.FireInbound([]byte("x"))
	p.FireInactive()

	assert.Equal(t, []string{
		"first:active", "second:active",
		"first:in:x", "second:in:x",
		// echo turns the flow around, outbound traverses in reverse
		"second:out:x", "first:out:x",
		"first:inactive", "second:inactive",
	}, events)
	require.Len(t, ft.writes, 1)
	assert.Equal(t, []byte("x"), ft.writes[0])
}

func TestWriteEntersAtTail(t *testing.T) {
	var events []string
	ft := &fakeTransport{}
	p := New(ft, []Handler{
		&tap{name: "a", events: &events},
		&tap{name: "b", events: &events},
	})

	p.Write([]byte("y"))
	assert.Equal(t, []string{"b:out:y", "a:out:y"}, events)
	require.Len(t, ft.writes, 1)
}

func TestEmptyPipelineIsASink(t *testing.T) {
	ft := &fakeTransport{}
	p := New(ft, nil)

	p.FireActive()
	p.FireInbound([]byte("dropped"))
	p.FireInactive()
	assert.Empty(t, ft.writes)

	p.Write([]byte("direct"))
	require.Len(t, ft.writes, 1)
	assert.Equal(t, []byte("direct"), ft.writes[0])
}

func TestUnhandledErrorClosesTransport(t *testing.T) {
	var events []string
	ft := &fakeTransport{}
	p := New(ft, []Handler{&tap{name: "a", events: &events}})

	boom := errors.New("boom")
	p.FireError(boom)

	assert.Equal(t, []string{"a:err"}, events)
	assert.True(t, ft.closed)
	assert.Equal(t, boom, ft.closeErr)
}

func TestQueueWriteFailureClosesTransport(t *testing.T) {
	ft := &fakeTransport{queueErr: errors.New("queue full")}
	p := New(ft, []Handler{NewEcho()})

	p.FireInbound([]byte("z"))
	assert.True(t, ft.closed)
}
