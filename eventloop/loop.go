// File: eventloop/loop.go
// Single-threaded event-loop worker.
// License: Apache-2.0

package eventloop

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evloop/evloop/internal/concurrency"
	"github.com/evloop/evloop/metric"
	"github.com/evloop/evloop/poller"
)

const (
	stateNew = int32(iota)
	stateRunning
	stateStopping
	stateStopped
)

// Options tune a loop or a group of loops.
type Options struct {
	// PollInterval bounds how long a loop parks in the multiplexer before
	// re-checking its task queue and stop flag. Wakeups make this a
	// latency backstop, not the latency itself.
	PollInterval time.Duration

	// EventBatch is the readiness batch size per poll.
	EventBatch int

	// ReadBufferSize is the per-loop read buffer, shared by its connections
	// within one dispatch.
	ReadBufferSize int

	Logger  *logrus.Entry
	Metrics *metric.Metrics
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.EventBatch <= 0 {
		o.EventBatch = 128
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = 64 << 10
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.Metrics == nil {
		o.Metrics = metric.New()
	}
	return o
}

// Loop is one event-loop worker. All fields past the task queue are owned by
// the loop goroutine; other goroutines interact only through Execute, Stop
// and Done.
type Loop struct {
	id    int
	opts  Options
	pl    poller.Poller
	tasks *concurrency.Queue[func()]
	log   *logrus.Entry

	state  atomic.Int32
	stopCh chan struct{}
	done   chan struct{}

	// loop-thread state
	conns   map[int]*Conn
	watches map[int]func(poller.Event)
	readBuf []byte
}

// NewLoop creates a worker with its own multiplexer. Call Start to run it.
func NewLoop(id int, opts Options) (*Loop, error) {
	opts = opts.withDefaults()
	pl, err := poller.New()
	if err != nil {
		return nil, err
	}
	return &Loop{
		id:      id,
		opts:    opts,
		pl:      pl,
		tasks:   concurrency.NewQueue[func()](),
		log:     opts.Logger.WithField("loop", id),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		conns:   make(map[int]*Conn),
		watches: make(map[int]func(poller.Event)),
		readBuf: make([]byte, opts.ReadBufferSize),
	}, nil
}

// ID returns the loop's index within its group.
func (l *Loop) ID() int { return l.id }

// Start launches the loop thread. Starting twice is a no-op.
func (l *Loop) Start() {
	if !l.state.CompareAndSwap(stateNew, stateRunning) {
		return
	}
	go l.run()
}

// Execute hands fn to the loop; it runs on the loop thread before the next
// poll. Safe from any goroutine.
func (l *Loop) Execute(fn func()) error {
	if l.state.Load() >= stateStopping {
		return ErrLoopClosed
	}
	l.tasks.Push(fn)
	return l.pl.Wake()
}

// Stop signals graceful termination: queued tasks still run, owned
// connections are closed with their pipelines' inactive event, then the
// thread exits. Safe from any goroutine, including the loop's own.
func (l *Loop) Stop() {
	var wasNew bool
	for {
		s := l.state.Load()
		if s >= stateStopping {
			return
		}
		if l.state.CompareAndSwap(s, stateStopping) {
			wasNew = s == stateNew
			break
		}
	}
	close(l.stopCh)
	_ = l.pl.Wake()
	if wasNew {
		// never started, nothing else will release the poller or done
		_ = l.pl.Close()
		l.state.Store(stateStopped)
		close(l.done)
	}
}

// Done is closed once the loop thread has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Pending reports queued cross-thread tasks, mainly for tests and stats.
func (l *Loop) Pending() int { return l.tasks.Len() }

func (l *Loop) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)
	defer l.state.Store(stateStopped)

	events := make([]poller.Event, l.opts.EventBatch)
	var taskBuf []func()

	for {
		taskBuf = l.drainTasks(taskBuf)

		select {
		case <-l.stopCh:
			l.terminate(taskBuf)
			return
		default:
		}

		n, err := l.pl.Wait(events, l.opts.PollInterval)
		if err != nil {
			if err == poller.ErrClosed {
				l.terminate(taskBuf)
				return
			}
			// a multiplexer-level failure must not kill the worker
			l.log.WithError(err).Warn("poll failed")
			time.Sleep(time.Millisecond)
			continue
		}
		for i := 0; i < n; i++ {
			l.dispatch(events[i])
		}
	}
}

func (l *Loop) drainTasks(buf []func()) []func() {
	buf = l.tasks.PopAll(buf[:0])
	for _, fn := range buf {
		fn()
		l.opts.Metrics.TasksExecuted.Inc()
	}
	return buf
}

// Watch registers a raw descriptor with a readiness callback and reports the
// registration result, so a listener that cannot be multiplexed fails loudly
// at startup. It blocks until the loop applies the change and therefore must
// not be called from the loop's own thread. The acceptor uses this for its
// listening socket; connections go through Attach.
func (l *Loop) Watch(fd int, in poller.Interest, fn func(poller.Event)) error {
	res := make(chan error, 1)
	if err := l.Execute(func() {
		err := l.pl.Add(fd, in)
		if err == nil {
			l.watches[fd] = fn
		}
		res <- err
	}); err != nil {
		return err
	}
	return <-res
}

// Unwatch drops a raw descriptor registration. The caller still owns the
// descriptor and closes it.
func (l *Loop) Unwatch(fd int) error {
	return l.Execute(func() {
		_ = l.pl.Del(fd)
		delete(l.watches, fd)
	})
}

func (l *Loop) dispatch(ev poller.Event) {
	if fn, ok := l.watches[ev.FD]; ok {
		fn(ev)
		return
	}
	c, ok := l.conns[ev.FD]
	if !ok {
		// raced with a close; drop the stale registration if any remains
		_ = l.pl.Del(ev.FD)
		return
	}
	if ev.Readable {
		c.onReadable()
	}
	if ev.Writable && !c.closed {
		c.onWritable()
	}
	if ev.Hup && !ev.Readable && !c.closed {
		c.close(ErrConnClosed)
	}
}

// terminate runs the final queued tasks and closes every owned connection
// before the thread exits.
func (l *Loop) terminate(taskBuf []func()) {
	l.drainTasks(taskBuf)
	for _, c := range l.conns {
		c.close(nil)
	}
	_ = l.pl.Close()
	l.log.Debug("loop stopped")
}
