package event

import "context"

// Priority orders handlers subscribed to the same emission. Lower runs
// first; equal priorities run in subscription order.
type Priority int

const (
	// PriorityHigh runs before ordinary subscribers.
	PriorityHigh Priority = 100

	// PriorityNormal is the default.
	PriorityNormal Priority = 200

	// PriorityLow runs last, e.g. for loggers and printers.
	PriorityLow Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// DeliveryMode selects how a handler is invoked.
type DeliveryMode int

const (
	// DeliverySync runs the handler in the emitter's goroutine before Emit
	// returns.
	DeliverySync DeliveryMode = iota

	// DeliveryAsync queues the handler on the worker pool.
	DeliveryAsync
)

// String returns a human-readable delivery mode name.
func (m DeliveryMode) String() string {
	switch m {
	case DeliverySync:
		return "sync"
	case DeliveryAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Handler processes an emitted event. The event is type-erased; use
// AsHandler or AsHandlerFunc for typed payloads.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// TypedHandler handles events of one payload type.
type TypedHandler[T any] interface {
	Handle(ctx context.Context, event Event[T]) error
}

// TypedHandlerFunc adapts a function to TypedHandler.
type TypedHandlerFunc[T any] func(ctx context.Context, event Event[T]) error

// Handle implements TypedHandler.
func (f TypedHandlerFunc[T]) Handle(ctx context.Context, event Event[T]) error {
	return f(ctx, event)
}

// AsHandler converts a TypedHandler to a Handler. Events of other payload
// types are ignored.
func AsHandler[T any](h TypedHandler[T]) Handler {
	return HandlerFunc(func(ctx context.Context, event any) error {
		if e, ok := event.(Event[T]); ok {
			return h.Handle(ctx, e)
		}
		return nil
	})
}

// AsHandlerFunc converts a TypedHandlerFunc to a Handler.
func AsHandlerFunc[T any](fn TypedHandlerFunc[T]) Handler {
	return AsHandler[T](fn)
}

// FilterFunc decides whether an event reaches a subscription.
type FilterFunc func(event any) bool

// Stats is a point-in-time view of bus counters.
type Stats struct {
	EventsEmitted     uint64
	EventsDelivered   uint64
	EventsReplayed    uint64
	EventsDropped     uint64
	HandlersExecuted  uint64
	HandlerErrors     uint64
	HandlerPanics     uint64
	ActiveSubscribers int
	CachedTopics      int
	QueueDepth        int
}

// PanicHandler receives recovered handler panics.
type PanicHandler func(err *PanicError)

// ErrorHandler receives errors returned by handlers.
type ErrorHandler func(err *HandlerError)
