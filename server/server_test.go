// File: server/server_test.go
// License: Apache-2.0

package server

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/evloop/evloop/eventloop"
	"github.com/evloop/evloop/metric"
	"github.com/evloop/evloop/pipeline"
	"github.com/evloop/evloop/security"
)

func echoBuilder(pipeline.Transport) []pipeline.Handler {
	return []pipeline.Handler{pipeline.NewEcho()}
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func startServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Addr = "127.0.0.1:0"
	cfg.WorkerLoops = 2
	srv := New(cfg, echoBuilder, WithLogger(quietLog()))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)
	return srv
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestEchoRoundTrip(t *testing.T) {
	srv := startServer(t, nil)
	c := dialServer(t, srv)

	_, err := c.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	// nothing beyond the echo may arrive
	c.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	n, err = c.Read(buf)
	assert.Equal(t, 0, n)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestConcurrentClientsAreIsolated(t *testing.T) {
	srv := startServer(t, nil)

	const clients = 16
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()), time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()

			msg := []byte(fmt.Sprintf("client-%d-payload", id))
			for round := 0; round < 20; round++ {
				if _, err := c.Write(msg); !assert.NoError(t, err) {
					return
				}
				buf := make([]byte, len(msg))
				c.SetReadDeadline(time.Now().Add(2 * time.Second))
				if _, err := io.ReadFull(c, buf); !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, msg, buf, "echo leaked between connections")
			}
		}(i)
	}
	wg.Wait()
}

func TestLargeBurstSurvivesBackpressure(t *testing.T) {
	srv := startServer(t, nil)
	c := dialServer(t, srv)

	payload := make([]byte, 10<<20)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	// read concurrently so the kernel buffers never wedge both directions
	var got bytes.Buffer
	readErr := make(chan error, 1)
	go func() {
		c.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, err := io.CopyN(&got, c, int64(len(payload)))
		readErr <- err
	}()

	_, err = c.Write(payload)
	require.NoError(t, err)
	require.NoError(t, <-readErr)
	assert.True(t, bytes.Equal(payload, got.Bytes()), "echoed bytes diverged")
}

func TestShutdownStopsAccepting(t *testing.T) {
	srv := startServer(t, nil)
	port := srv.Port()
	srv.Shutdown()

	_, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 500*time.Millisecond)
	assert.Error(t, err, "listener must be closed after shutdown")
}

func TestStartTwiceFails(t *testing.T) {
	srv := startServer(t, nil)
	assert.ErrorIs(t, srv.Start(), ErrAlreadyStarted)
}

func TestBindFailureIsSynchronous(t *testing.T) {
	// occupy a port, then ask the server for the same one
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	addr := l.Addr().String()

	srv := New(&Config{Addr: addr, WorkerLoops: 1}, echoBuilder, WithLogger(quietLog()))
	err = srv.Start()
	require.Error(t, err)
	assert.Equal(t, -1, srv.lfd, "failed start must leave no live listener descriptor")
	srv.Shutdown() // must not panic after a failed start
	srv.Shutdown()
}

func TestShutdownSkipsInvalidListener(t *testing.T) {
	// the state a failed acceptor registration leaves behind: groups running,
	// listener descriptor already closed and invalidated
	srv := New(&Config{Addr: "127.0.0.1:0", WorkerLoops: 1}, echoBuilder, WithLogger(quietLog()))
	boss, err := eventloop.NewGroup(1, eventloop.Options{})
	require.NoError(t, err)
	workers, err := eventloop.NewGroup(1, eventloop.Options{})
	require.NoError(t, err)
	boss.Start()
	workers.Start()
	srv.boss, srv.workers, srv.bossLoop = boss, workers, boss.Loop(0)
	srv.started.Store(true)

	// an unrelated live descriptor that must survive the shutdown
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	srv.Shutdown()
	assert.Equal(t, -1, srv.lfd)
	_, err = unix.Write(fds[0], []byte("x"))
	assert.NoError(t, err, "shutdown closed a descriptor it does not own")
}

func TestTLSEchoRoundTrip(t *testing.T) {
	tlsCfg, err := security.SelfSigned()
	require.NoError(t, err)
	srv := startServer(t, &Config{TLS: tlsCfg})

	raw := dialServer(t, srv)
	c := tls.Client(raw, &tls.Config{InsecureSkipVerify: true})
	require.NoError(t, c.Handshake())

	_, err = c.Write([]byte("over tls"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	raw.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "over tls", string(buf[:n]))
	c.Close()
}

func TestConnectionReleaseUpdatesGauge(t *testing.T) {
	m := metric.New()
	srv := New(&Config{Addr: "127.0.0.1:0", WorkerLoops: 2},
		echoBuilder, WithLogger(quietLog()), WithMetrics(m))
	require.NoError(t, srv.Start())
	defer srv.Shutdown()

	c := dialServer(t, srv)
	_, err := c.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsActive))
	c.Close()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ConnectionsActive) == 0
	}, 2*time.Second, 20*time.Millisecond, "close not observed by the worker loop")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsAccepted))
}
