// File: internal/concurrency/queue.go
// MPSC queue used for cross-thread handoff into an event loop.
// License: Apache-2.0

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// Queue is a multi-producer FIFO. Any goroutine may Push; the owning loop
// drains with Pop or PopAll. The zero value is not usable, call NewQueue.
type Queue[T any] struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{q: queue.New()}
}

// Push appends item.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.q.Add(item)
	q.mu.Unlock()
}

// Pop removes and returns the oldest item; ok is false when empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.q.Length() == 0 {
		return item, false
	}
	return q.q.Remove().(T), true
}

// PopAll drains every queued item into out and returns it. Draining in one
// critical section keeps producers from starving the consuming loop.
func (q *Queue[T]) PopAll(out []T) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.q.Length() > 0 {
		out = append(out, q.q.Remove().(T))
	}
	return out
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length()
}
