// File: internal/concurrency/queue_test.go
// License: Apache-2.0

package concurrency

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	assert.Equal(t, 10, q.Len())
	for i := 0; i < 10; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueuePopAll(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Push("b")
	q.Push("c")

	out := q.PopAll(nil)
	assert.Equal(t, []string{"a", "b", "c"}, out)
	assert.Equal(t, 0, q.Len())

	// reusing the buffer must not resurrect old items
	out = q.PopAll(out[:0])
	assert.Empty(t, out)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	const producers = 8
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(base + i)
			}
		}(p * perProducer)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		assert.False(t, seen[v], "duplicate item %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, producers*perProducer)
}

func TestBlockingQueueTakeBlocks(t *testing.T) {
	b := NewBlockingQueue[int]()

	got := make(chan int, 1)
	go func() {
		v, ok := b.Take()
		require.True(t, ok)
		got <- v
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, b.Put(42))

	select {
	case v := <-got:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("Take did not observe Put")
	}
}

func TestBlockingQueueCloseDrains(t *testing.T) {
	b := NewBlockingQueue[int]()
	b.Put(1)
	b.Put(2)
	b.Close()

	// items queued before close remain takeable
	v, ok := b.Take()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = b.Take()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = b.Take()
	assert.False(t, ok)
	assert.False(t, b.Put(3))
}
