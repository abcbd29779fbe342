// Package dispatch runs notification handlers for the event bus.
//
// SyncDispatcher runs a handler on the caller's goroutine; the store's
// drain loop uses it so handlers observe notifications in write order.
// AsyncDispatcher runs handlers on a worker pool, pinning each key to one
// worker so a single subscriber still sees its notifications in order.
//
// Both recover handler panics and report them through a PanicHandler so a
// misbehaving subscriber cannot take down the writer.
//
//	d := dispatch.NewAsyncDispatcher(
//	    dispatch.WithWorkerCount(4),
//	    dispatch.WithPanicHandler(func(event any, v any, stack []byte) {
//	        log.Error("handler panic: %v", v)
//	    }),
//	)
//	_ = d.Start()
//	err := d.Enqueue(ctx, sub.ID(), evt, handler)
package dispatch
