package dispatch

import (
	"context"
	"sync/atomic"
	"time"
)

// Handler mirrors event.Handler so this package does not import its parent.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// Result is the outcome of one handler execution.
type Result struct {
	// Success is true if the handler returned nil without panicking.
	Success bool

	// Error is the error returned by the handler, or the context error when
	// the handler was skipped.
	Error error

	// Panicked is true if the handler panicked. PanicValue and PanicStack
	// describe the panic.
	Panicked   bool
	PanicValue any
	PanicStack []byte

	// Duration is how long the handler ran.
	Duration time.Duration

	// Skipped is true if the context was done before the handler started.
	Skipped bool
}

// IsSuccess reports whether the handler completed cleanly.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError reports whether the handler returned an error (not a panic).
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked
}

// PanicHandler receives the event, the recovered value and the stack.
type PanicHandler func(event any, panicValue any, stack []byte)

// Option configures a SyncDispatcher or an AsyncDispatcher. Queue options
// are ignored by the synchronous dispatcher.
type Option func(*options)

type options struct {
	timeout     time.Duration
	onPanic     PanicHandler
	queueSize   int
	workerCount int
}

func defaultOptions() options {
	return options{queueSize: 1024, workerCount: 4}
}

// WithTimeout sets a per-handler deadline. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithPanicHandler sets the callback for recovered handler panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) {
		o.onPanic = h
	}
}

// WithQueueSize sets the total number of tasks the async workers may hold
// waiting. It is split evenly between the workers.
func WithQueueSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of async worker goroutines.
func WithWorkerCount(count int) Option {
	return func(o *options) {
		if count > 0 {
			o.workerCount = count
		}
	}
}

// Stats is a point-in-time view of a dispatcher's counters.
type Stats struct {
	// Enqueued counts tasks accepted by an async dispatcher.
	Enqueued uint64
	// Dispatched counts handler invocations, including skipped ones.
	Dispatched uint64
	Succeeded  uint64
	Failed     uint64
	Panicked   uint64
	Skipped    uint64
	// Dropped counts tasks refused because a worker queue was full.
	Dropped       uint64
	TotalDuration time.Duration
	QueueLength   int
}

type counters struct {
	enqueued   atomic.Uint64
	dispatched atomic.Uint64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
	panicked   atomic.Uint64
	skipped    atomic.Uint64
	dropped    atomic.Uint64
	totalNs    atomic.Int64
}

func (c *counters) record(r Result) {
	c.dispatched.Add(1)
	c.totalNs.Add(r.Duration.Nanoseconds())
	switch {
	case r.Skipped:
		c.skipped.Add(1)
	case r.Panicked:
		c.panicked.Add(1)
	case r.Error != nil:
		c.failed.Add(1)
	default:
		c.succeeded.Add(1)
	}
}

func (c *counters) stats() Stats {
	return Stats{
		Enqueued:      c.enqueued.Load(),
		Dispatched:    c.dispatched.Load(),
		Succeeded:     c.succeeded.Load(),
		Failed:        c.failed.Load(),
		Panicked:      c.panicked.Load(),
		Skipped:       c.skipped.Load(),
		Dropped:       c.dropped.Load(),
		TotalDuration: time.Duration(c.totalNs.Load()),
	}
}
