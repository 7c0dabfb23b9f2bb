// File: internal/concurrency/blocking.go
// Blocking FIFO for pump goroutines that may park between items.
// License: Apache-2.0

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// BlockingQueue is an unbounded FIFO whose Take parks until an item arrives
// or the queue is closed. Producers never block.
type BlockingQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
}

// NewBlockingQueue creates an open queue.
func NewBlockingQueue[T any]() *BlockingQueue[T] {
	b := &BlockingQueue[T]{q: queue.New()}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Put appends item; returns false if the queue is already closed.
func (b *BlockingQueue[T]) Put(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.q.Add(item)
	b.cond.Signal()
	return true
}

// Take blocks until an item is available or the queue closes.
// ok is false only after close with the queue fully drained.
func (b *BlockingQueue[T]) Take() (item T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.q.Length() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.q.Length() == 0 {
		return item, false
	}
	return b.q.Remove().(T), true
}

// Close wakes all parked consumers. Items already queued remain takeable.
func (b *BlockingQueue[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
