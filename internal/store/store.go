package store

import (
	"context"
	"sync"

	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/event/topic"
	"github.com/dshills/proxystore/internal/logging"
)

// EventSource is the Metadata.Source of every store notification.
const EventSource = "store"

// Store holds the root node and the notification bus.
type Store struct {
	mu   sync.Mutex
	root *Node

	queue    []pending
	draining bool
	closed   bool
	err      error

	maxCascade int
	logger     *logging.Logger
	bus        event.Bus
}

// New creates a store whose root is an empty mapping.
func New(opts ...Option) *Store {
	o := options{logger: logging.Null()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{
		maxCascade: o.maxCascade,
		logger:     o.logger.WithComponent("store"),
	}

	busOpts := []event.BusOption{
		event.WithErrorHandler(func(err *event.HandlerError) {
			s.logger.WithField("topic", err.Topic).Error("handler failed: %v", err.Err)
		}),
		event.WithBusPanicHandler(func(err *event.PanicError) {
			s.logger.WithField("topic", err.Topic).Error("handler panicked: %v", err.Value)
		}),
	}
	s.bus = event.NewBus(append(busOpts, o.busOptions...)...)
	_ = s.bus.Start()

	s.root = s.newNode(nil, "", ShapeMapping)
	s.root.auto = false
	return s
}

// Root returns the current root node. Set replaces it.
func (s *Store) Root() *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Get reads a dotted path from the root, vivifying missing segments.
func (s *Store) Get(path string) any {
	return s.Root().Get(SplitPath(path)...)
}

// Lookup reads a dotted path without vivifying.
func (s *Store) Lookup(path string) (any, bool) {
	return s.Root().Lookup(SplitPath(path)...)
}

// Put writes value at a dotted path.
func (s *Store) Put(path string, value any) error {
	return s.Root().Set(SplitPath(path), value)
}

// Default applies value as defaults to the root.
func (s *Store) Default(value any) error {
	return s.Root().Default(value)
}

// Set replaces the whole tree with value, which must be a mapping or a
// sequence whose mapping keys are non-empty and hold no dot. Every entry
// of the new tree is notified deepest first, then "store". Subscriptions
// are kept. On error the store is unchanged.
func (s *Store) Set(value any) (*Node, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}

	v := plain(value, s)
	if !Traversable(v) {
		s.mu.Unlock()
		return nil, ErrInvalidStoreValue
	}
	if err := checkKeys("set", v, nil); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	root := s.wrap(v, nil, "")
	s.root = root
	root.flushDirty(rootLabel)
	s.enqueue(rootLabel, root, nil)
	s.mu.Unlock()

	s.flush()
	return root, nil
}

// Assign exists to reject replacing the store handle wholesale. It always
// returns ErrDirectAssignment and changes nothing.
func (s *Store) Assign(any) error {
	return ErrDirectAssignment
}

// Snapshot returns a deep copy of the tree.
func (s *Store) Snapshot() any {
	return s.Root().Snapshot()
}

// Err returns the first asynchronous failure, currently only
// ErrCascadeLimit.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns notification bus counters.
func (s *Store) Stats() event.Stats {
	return s.bus.Stats()
}

// Close stops the bus, waiting for async handlers or ctx. Later writes
// fail with ErrStoreClosed; reads keep working.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("closing")
	return s.bus.Stop(ctx)
}

// On subscribes h to a label pattern such as "store.names" or
// "store.names.*". Unless event.WithLazy(false) is given, the last value
// of every matching label is delivered before On returns.
func (s *Store) On(pattern string, h Handler, opts ...event.SubscriptionOption) (event.Subscription, error) {
	if h == nil {
		return nil, event.ErrNilHandler
	}
	return s.bus.On(topic.Topic(pattern), adapt(h), opts...)
}

// One is On for a single delivery.
func (s *Store) One(pattern string, h Handler, opts ...event.SubscriptionOption) (event.Subscription, error) {
	if h == nil {
		return nil, event.ErrNilHandler
	}
	return s.bus.One(topic.Topic(pattern), adapt(h), opts...)
}

// Off removes a subscription.
func (s *Store) Off(sub event.Subscription) error {
	return s.bus.Off(sub)
}

// OffTopic removes every subscription registered on exactly pattern.
func (s *Store) OffTopic(pattern string) int {
	return s.bus.OffTopic(topic.Topic(pattern))
}

// On subscribes through the node's store. Patterns are absolute labels.
func (n *Node) On(pattern string, h Handler, opts ...event.SubscriptionOption) (event.Subscription, error) {
	return n.store.On(pattern, h, opts...)
}

// One subscribes once through the node's store.
func (n *Node) One(pattern string, h Handler, opts ...event.SubscriptionOption) (event.Subscription, error) {
	return n.store.One(pattern, h, opts...)
}

// Off removes a subscription through the node's store.
func (n *Node) Off(sub event.Subscription) error {
	return n.store.Off(sub)
}

// OffTopic removes subscriptions on pattern through the node's store.
func (n *Node) OffTopic(pattern string) int {
	return n.store.OffTopic(pattern)
}

// Store returns the store owning the node.
func (n *Node) Store() *Store {
	return n.store
}

func adapt(h Handler) event.Handler {
	return event.AsHandlerFunc(func(ctx context.Context, e event.Event[Change]) error {
		return h(ctx, e.Payload)
	})
}
