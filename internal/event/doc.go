// Package event is the notification bus behind the store.
//
// Every store node publishes its changes on a dotted topic equal to its
// label ("store", "store.names", "store.names.0.name"). Subscribers register
// a pattern; "*" matches one segment and "**" matches any number:
//
//	store.names.*      every direct child of names
//	store.**           everything
//	store.*.name       the name field under any top-level key
//
// # Lazy replay
//
// The bus remembers the last event emitted on every concrete topic. A new
// subscription receives the cached event of each matching topic before On
// returns, oldest emission first, so late subscribers start from the
// current state. WithLazy(false) turns this off. One delivers at most one
// event; when a cached value matches it is consumed immediately.
//
//	bus := event.NewBus()
//	_ = bus.Start()
//	defer bus.Stop(context.Background())
//
//	_ = bus.Emit(ctx, event.NewEvent[int]("store.count", 3, "store"))
//
//	// Receives 3 right away, then every later emission.
//	sub, _ := bus.On("store.count", event.AsHandlerFunc(
//	    func(ctx context.Context, e event.Event[int]) error {
//	        fmt.Println(e.Payload, event.IsReplay(ctx))
//	        return nil
//	    }))
//	defer bus.Off(sub)
//
// # Delivery
//
// Sync handlers (the default) run in the emitter's goroutine, in priority
// order and then subscription order. Async handlers run on a worker pool.
// Handler errors and panics never reach the emitter; they are counted in
// Stats and reported through WithErrorHandler and WithBusPanicHandler.
package event
