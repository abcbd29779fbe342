package dispatch

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// AsyncDispatcher runs handlers on a fixed set of workers. Every task
// carries a key, normally the subscription ID, and all tasks with the same
// key go to the same worker, so one subscriber sees its notifications in
// the order they were enqueued while different subscribers proceed in
// parallel.
type AsyncDispatcher struct {
	opts options
	counters

	mu      sync.Mutex
	lanes   []chan task
	running atomic.Bool
	wg      sync.WaitGroup
}

type task struct {
	ctx     context.Context
	event   any
	handler Handler
}

// NewAsyncDispatcher creates an async dispatcher. Call Start before Enqueue.
func NewAsyncDispatcher(opts ...Option) *AsyncDispatcher {
	d := &AsyncDispatcher{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

// Start launches one worker per lane.
func (d *AsyncDispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return ErrAlreadyRunning
	}

	n := d.opts.workerCount
	size := max(1, d.opts.queueSize/n)
	d.lanes = make([]chan task, n)
	for i := range d.lanes {
		d.lanes[i] = make(chan task, size)
		d.wg.Add(1)
		go d.work(d.lanes[i])
	}
	d.running.Store(true)
	return nil
}

// Stop refuses new tasks and waits until the queued ones have run or ctx
// is done.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running.Load() {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.running.Store(false)
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether tasks are accepted.
func (d *AsyncDispatcher) IsRunning() bool {
	return d.running.Load()
}

// Enqueue hands a task to the worker owning key without blocking. When that
// worker's queue is full the task is dropped with ErrQueueFull.
func (d *AsyncDispatcher) Enqueue(ctx context.Context, key string, event any, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return ErrNotRunning
	}

	select {
	case d.lanes[laneOf(key, len(d.lanes))] <- task{ctx: ctx, event: event, handler: handler}:
		d.enqueued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

func laneOf(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

func (d *AsyncDispatcher) work(lane <-chan task) {
	defer d.wg.Done()
	for t := range lane {
		d.record(invoke(t.ctx, t.event, t.handler, d.opts.timeout, d.opts.onPanic))
	}
}

// Stats returns the dispatcher counters and the number of waiting tasks.
func (d *AsyncDispatcher) Stats() Stats {
	s := d.stats()
	d.mu.Lock()
	for _, lane := range d.lanes {
		s.QueueLength += len(lane)
	}
	d.mu.Unlock()
	return s
}
