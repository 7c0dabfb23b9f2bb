// File: server/server.go
// Server facade: startup, serving, and the shutdown coordinator.
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/evloop/evloop/eventloop"
	"github.com/evloop/evloop/internal/netutil"
	"github.com/evloop/evloop/metric"
	"github.com/evloop/evloop/pipeline"
	"github.com/evloop/evloop/poller"
	"github.com/evloop/evloop/security"
)

// ErrAlreadyStarted is returned by Start on a second call.
var ErrAlreadyStarted = errors.New("server: already started")

// Server runs one listening socket over a boss group and a worker group.
type Server struct {
	cfg     *Config
	builder pipeline.Builder
	log     *logrus.Entry
	metrics *metric.Metrics

	boss     *eventloop.Group
	bossLoop *eventloop.Loop
	workers  *eventloop.Group
	lfd      int
	port     int

	started  atomic.Bool
	closedCh chan struct{}
	stopOnce sync.Once
}

// New creates a server. builder produces the application stages for each
// accepted connection; the transport-security stage is prepended
// automatically when cfg.TLS is set.
func New(cfg *Config, builder pipeline.Builder, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		cfg:      cfg.withDefaults(),
		builder:  builder,
		lfd:      -1,
		closedCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "server")
	if s.metrics == nil {
		s.metrics = metric.New()
	}
	return s
}

// Start binds the listening socket and launches both groups. It returns
// only after the OS confirms the socket is listening, so bind failures
// (port in use, permission denied) surface here and nothing is left
// running. Serving continues in the background; use Wait to block.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	lfd, err := netutil.Listen(s.cfg.Addr, s.cfg.Backlog)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	s.lfd = lfd
	if s.port, err = netutil.LocalPort(lfd); err != nil {
		unix.Close(lfd)
		s.lfd = -1
		return fmt.Errorf("server: %w", err)
	}

	loopOpts := eventloop.Options{
		PollInterval:   s.cfg.PollInterval,
		EventBatch:     s.cfg.EventBatch,
		ReadBufferSize: s.cfg.ReadBufferSize,
		Logger:         s.log,
		Metrics:        s.metrics,
	}
	if s.boss, err = eventloop.NewGroup(s.cfg.AcceptorLoops, loopOpts); err != nil {
		unix.Close(lfd)
		s.lfd = -1
		return fmt.Errorf("server: boss group: %w", err)
	}
	if s.workers, err = eventloop.NewGroup(s.cfg.WorkerLoops, loopOpts); err != nil {
		s.boss.Shutdown()
		unix.Close(lfd)
		s.lfd = -1
		return fmt.Errorf("server: worker group: %w", err)
	}

	s.boss.Start()
	s.workers.Start()

	acc := &acceptor{s: s, lfd: lfd}
	s.bossLoop = s.boss.Next()
	if err := s.bossLoop.Watch(lfd, poller.Readable, acc.onAcceptable); err != nil {
		s.shutdownGroups(context.Background())
		unix.Close(lfd)
		s.lfd = -1
		s.bossLoop = nil
		return fmt.Errorf("server: register acceptor: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"addr":    s.cfg.Addr,
		"port":    s.port,
		"workers": s.workers.Size(),
		"tls":     s.cfg.TLS != nil,
	}).Info("listening")
	return nil
}

// Port reports the bound port, which differs from the configured one when
// listening on port 0.
func (s *Server) Port() int { return s.port }

// Wait blocks until the listening socket has been closed by Shutdown or a
// listener failure.
func (s *Server) Wait() { <-s.closedCh }

// Shutdown drains the server with the configured timeout. See ShutdownContext.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.ShutdownContext(ctx)
}

// ShutdownContext stops the server gracefully: the acceptor group stops
// taking new connections first, then the worker group drains. A group that
// outlives ctx is reported as a warning; resource reclaim on timeout is
// best effort, never an escalation. Idempotent and safe from any goroutine.
func (s *Server) ShutdownContext(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.closedCh)
		if s.bossLoop == nil {
			// never finished starting; Start's error paths already cleaned up
			return
		}
		// stop accepting before draining: close the listener so racing
		// clients are refused, then retire the groups in order
		if s.lfd >= 0 {
			_ = s.bossLoop.Unwatch(s.lfd)
			unix.Close(s.lfd)
			s.lfd = -1
		}
		s.shutdownGroups(ctx)
		s.log.Info("server stopped")
	})
}

func (s *Server) shutdownGroups(ctx context.Context) {
	s.boss.Shutdown()
	if err := s.boss.Await(ctx); err != nil {
		s.log.WithError(err).Warn("acceptor group did not drain in time")
	}
	s.workers.Shutdown()
	if err := s.workers.Await(ctx); err != nil {
		s.log.WithError(err).Warn("worker group did not drain in time")
	}
}

// buildPipeline assembles the fixed stage list for one accepted connection:
// the security stage first when TLS is enabled, then the application stages.
func (s *Server) buildPipeline(t pipeline.Transport) []pipeline.Handler {
	var stages []pipeline.Handler
	if s.cfg.TLS != nil {
		stages = append(stages, security.NewHandler(s.cfg.TLS, s.log))
	}
	if s.builder != nil {
		stages = append(stages, s.builder(t)...)
	}
	return stages
}
