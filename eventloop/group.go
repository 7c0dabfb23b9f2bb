// File: eventloop/group.go
// Fixed-size pool of event-loop workers.
// License: Apache-2.0

package eventloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Group owns a fixed set of loops. The size is immutable after construction
// and loops are never migrated; new connections are spread with round-robin
// selection, a deliberate static-distribution tradeoff.
type Group struct {
	loops []*Loop
	next  atomic.Uint64

	shutdownOnce sync.Once
}

// NewGroup builds n loops (n must be >= 1) sharing opts. Loops are not
// running until Start.
func NewGroup(n int, opts Options) (*Group, error) {
	if n < 1 {
		return nil, fmt.Errorf("eventloop: group size %d, need >= 1", n)
	}
	g := &Group{loops: make([]*Loop, n)}
	for i := 0; i < n; i++ {
		l, err := NewLoop(i, opts)
		if err != nil {
			for _, started := range g.loops[:i] {
				started.Stop()
			}
			return nil, err
		}
		g.loops[i] = l
	}
	return g, nil
}

// Start launches every loop thread.
func (g *Group) Start() {
	for _, l := range g.loops {
		l.Start()
	}
}

// Size reports the fixed number of loops.
func (g *Group) Size() int { return len(g.loops) }

// Next selects the loop for the next piece of work, round-robin.
// Safe from any goroutine.
func (g *Group) Next() *Loop {
	n := g.next.Add(1)
	return g.loops[(n-1)%uint64(len(g.loops))]
}

// Loop returns the i-th loop, for tests and stats.
func (g *Group) Loop(i int) *Loop { return g.loops[i] }

// Shutdown signals every loop to terminate gracefully. Idempotent and
// non-blocking, so it is safe even from one of the group's own loop
// threads; use Await to bound the wait for termination.
func (g *Group) Shutdown() {
	g.shutdownOnce.Do(func() {
		for _, l := range g.loops {
			l.Stop()
		}
	})
}

// Await blocks until every loop thread has exited or ctx expires. On
// expiry it returns ErrShutdownTimeout naming the stragglers; callers
// report that as a warning, never a crash.
func (g *Group) Await(ctx context.Context) error {
	var stragglers []int
	for _, l := range g.loops {
		// a loop that has already exited is never a straggler, even when
		// ctx expired before Await was called
		select {
		case <-l.Done():
			continue
		default:
		}
		select {
		case <-l.Done():
		case <-ctx.Done():
			stragglers = append(stragglers, l.ID())
		}
	}
	if len(stragglers) > 0 {
		return fmt.Errorf("%w: loops %v still running", ErrShutdownTimeout, stragglers)
	}
	return nil
}
