package dispatch

import "context"

// SyncDispatcher runs each handler on the goroutine that dispatches it. The
// store drains its notification queue through it, so synchronous
// subscribers observe changes in write order.
type SyncDispatcher struct {
	opts options
	counters
}

// NewSyncDispatcher creates a synchronous dispatcher.
func NewSyncDispatcher(opts ...Option) *SyncDispatcher {
	d := &SyncDispatcher{opts: defaultOptions()}
	for _, opt := range opts {
		opt(&d.opts)
	}
	return d
}

// Dispatch runs handler and returns once it has finished.
func (d *SyncDispatcher) Dispatch(ctx context.Context, event any, handler Handler) Result {
	res := invoke(ctx, event, handler, d.opts.timeout, d.opts.onPanic)
	d.record(res)
	return res
}

// Stats returns the dispatcher counters.
func (d *SyncDispatcher) Stats() Stats {
	return d.stats()
}
