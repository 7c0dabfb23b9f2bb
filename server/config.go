// File: server/config.go
// Server configuration, consumed once at startup.
// License: Apache-2.0

package server

import (
	"crypto/tls"
	"fmt"
	"runtime"
	"time"
)

// Config describes one server instance. It is read once by Start and not
// consulted afterwards.
type Config struct {
	// Addr is the TCP listen address.
	Addr string

	// Backlog is the listen(2) backlog of pending connections.
	Backlog int

	// AcceptorLoops sizes the boss group. One loop is almost always enough
	// for a single listening socket.
	AcceptorLoops int

	// WorkerLoops sizes the worker group serving accepted connections.
	WorkerLoops int

	// AcceptBatch bounds accepts per readiness wake so a busy listener
	// cannot starve other descriptors on the boss loop.
	AcceptBatch int

	// TLS enables the transport-security stage as the first pipeline stage
	// when non-nil.
	TLS *tls.Config

	// PollInterval, EventBatch and ReadBufferSize are passed through to the
	// event loops; zero values pick the loop defaults.
	PollInterval   time.Duration
	EventBatch     int
	ReadBufferSize int

	// ShutdownTimeout bounds the wait for each group during Shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the stock configuration: port 8007, backlog 100,
// one acceptor loop and two worker loops per CPU.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8007",
		Backlog:         100,
		AcceptorLoops:   1,
		WorkerLoops:     runtime.NumCPU() * 2,
		AcceptBatch:     16,
		ShutdownTimeout: 5 * time.Second,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	out := *c
	if out.Addr == "" {
		out.Addr = d.Addr
	}
	if out.Backlog <= 0 {
		out.Backlog = d.Backlog
	}
	if out.AcceptorLoops <= 0 {
		out.AcceptorLoops = d.AcceptorLoops
	}
	if out.WorkerLoops <= 0 {
		out.WorkerLoops = d.WorkerLoops
	}
	if out.AcceptBatch <= 0 {
		out.AcceptBatch = d.AcceptBatch
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	return &out
}

// Validate rejects configurations Start could not honor.
func (c *Config) Validate() error {
	if c.Backlog < 0 || c.AcceptorLoops < 0 || c.WorkerLoops < 0 || c.AcceptBatch < 0 {
		return fmt.Errorf("server: negative sizing in config")
	}
	return nil
}
