package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/proxystore/internal/event/dispatch"
	"github.com/dshills/proxystore/internal/event/topic"
)

// Bus is a topic-addressed publish/subscribe hub that remembers the last
// event emitted on every concrete topic and replays it to lazy subscribers.
type Bus interface {
	// On subscribes handler to pattern. Unless WithLazy(false) is given,
	// the cached event of every matching topic is delivered before On
	// returns.
	On(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)

	// One is On with WithOnce. A cached value satisfies it immediately.
	One(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)

	// Off removes a subscription.
	Off(sub Subscription) error

	// OffTopic removes every subscription registered on exactly pattern
	// and returns how many were removed.
	OffTopic(pattern topic.Topic) int

	// Emit caches event under its topic and delivers it to every matching
	// subscription. Sync handlers have returned when Emit returns.
	Emit(ctx context.Context, event any) error

	// Last returns the cached event for a concrete topic.
	Last(t topic.Topic) (any, bool)

	Start() error
	Stop(ctx context.Context) error
	IsRunning() bool
	Stats() Stats
}

type bus struct {
	// mu makes "cache then match" in Emit atomic with "register then look
	// up the cache" in On, so a new subscriber sees each event exactly once.
	mu       sync.Mutex
	registry *Registry
	cache    *replayCache

	syncDispatcher  *dispatch.SyncDispatcher
	asyncDispatcher *dispatch.AsyncDispatcher

	running atomic.Bool
	config  busConfig

	eventsEmitted   atomic.Uint64
	eventsDelivered atomic.Uint64
	eventsReplayed  atomic.Uint64
	eventsDropped   atomic.Uint64
	syncExecuted    atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64
}

// delivery is what the dispatchers see: the subscription travels with the
// event so panics can be attributed.
type delivery struct {
	sub   *subscription
	topic topic.Topic
	event any
}

// NewBus creates a bus. Call Start before Emit.
func NewBus(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &bus{
		registry: NewRegistry(),
		cache:    newReplayCache(),
		config:   config,
	}

	b.syncDispatcher = dispatch.NewSyncDispatcher(
		dispatch.WithPanicHandler(b.onPanic),
		dispatch.WithTimeout(config.handlerTimeout),
	)
	b.asyncDispatcher = dispatch.NewAsyncDispatcher(
		dispatch.WithQueueSize(config.asyncQueueSize),
		dispatch.WithWorkerCount(config.asyncWorkerCount),
		dispatch.WithTimeout(config.handlerTimeout),
		dispatch.WithPanicHandler(b.onPanic),
	)
	return b
}

func (b *bus) Start() error {
	if b.running.Load() {
		return ErrBusAlreadyRunning
	}
	if err := b.asyncDispatcher.Start(); err != nil {
		return err
	}
	b.running.Store(true)
	return nil
}

// Stop waits for queued async handlers or for ctx to end.
func (b *bus) Stop(ctx context.Context) error {
	if !b.running.Swap(false) {
		return ErrBusNotRunning
	}
	return b.asyncDispatcher.Stop(ctx)
}

func (b *bus) IsRunning() bool {
	return b.running.Load()
}

func (b *bus) On(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !pattern.IsValid() {
		return nil, ErrInvalidTopic
	}

	sub := newSubscription(uuid.NewString(), pattern, handler, opts...)

	b.mu.Lock()
	b.registry.Add(sub)
	var replay []cachedEvent
	if sub.config.Lazy {
		replay = b.cache.match(pattern)
	}
	b.mu.Unlock()

	if len(replay) == 0 {
		return sub, nil
	}

	ctx := withReplay(context.Background())
	if sub.config.Once {
		for i := len(replay) - 1; i >= 0; i-- {
			if b.deliver(ctx, sub, replay[i].topic, replay[i].event) {
				b.eventsReplayed.Add(1)
				break
			}
		}
		return sub, nil
	}

	for _, e := range replay {
		if b.deliver(ctx, sub, e.topic, e.event) {
			b.eventsReplayed.Add(1)
		}
	}
	return sub, nil
}

func (b *bus) One(pattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	return b.On(pattern, handler, append(opts, WithOnce())...)
}

func (b *bus) Off(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	sub.Cancel()
	if !b.registry.Remove(sub.ID()) {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (b *bus) OffTopic(pattern topic.Topic) int {
	removed := b.registry.RemoveTopic(pattern)
	for _, sub := range removed {
		sub.Cancel()
	}
	return len(removed)
}

func (b *bus) Emit(ctx context.Context, event any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}

	tp, ok := event.(TopicProvider)
	if !ok {
		return ErrInvalidEvent
	}
	t := tp.EventTopic()
	if !t.IsValid() || t.IsWildcard() {
		return ErrInvalidTopic
	}

	b.mu.Lock()
	b.cache.put(t, event)
	subs := b.registry.Match(t)
	b.mu.Unlock()

	b.eventsEmitted.Add(1)
	for _, sub := range subs {
		b.deliver(ctx, sub, t, event)
	}
	return nil
}

func (b *bus) Last(t topic.Topic) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.get(t)
}

// deliver hands one event to one subscription and reports whether it was
// accepted (not filtered, not already consumed).
func (b *bus) deliver(ctx context.Context, sub *subscription, t topic.Topic, event any) bool {
	if !sub.shouldDeliver(event) || !sub.claim() {
		return false
	}
	if sub.config.Once {
		sub.Cancel()
		b.registry.Remove(sub.ID())
	}

	d := delivery{sub: sub, topic: t, event: event}
	if sub.config.DeliveryMode == DeliveryAsync {
		if err := b.asyncDispatcher.Enqueue(ctx, sub.ID(), d, deliveryHandler{b}); err != nil {
			b.eventsDropped.Add(1)
			return false
		}
		return true
	}

	result := b.syncDispatcher.Dispatch(ctx, d, deliveryHandler{b})
	b.syncExecuted.Add(1)
	if result.IsSuccess() {
		b.eventsDelivered.Add(1)
	}
	return true
}

type deliveryHandler struct {
	b *bus
}

func (h deliveryHandler) Handle(ctx context.Context, v any) error {
	d := v.(delivery)
	err := d.sub.handler.Handle(ctx, d.event)
	if err != nil {
		h.b.handlerErrors.Add(1)
		if h.b.config.errorHandler != nil {
			h.b.config.errorHandler(&HandlerError{
				SubscriptionID: d.sub.ID(),
				Topic:          d.topic.String(),
				Err:            err,
			})
		}
	}
	return err
}

func (b *bus) onPanic(v any, recovered any, stack []byte) {
	b.handlerPanics.Add(1)
	if b.config.panicHandler == nil {
		return
	}
	d, _ := v.(delivery)
	perr := &PanicError{Value: recovered, Stack: string(stack)}
	if d.sub != nil {
		perr.SubscriptionID = d.sub.ID()
		perr.Topic = d.topic.String()
	}
	b.config.panicHandler(perr)
}

func (b *bus) Stats() Stats {
	async := b.asyncDispatcher.Stats()

	b.mu.Lock()
	cached := b.cache.size()
	b.mu.Unlock()

	return Stats{
		EventsEmitted:     b.eventsEmitted.Load(),
		EventsDelivered:   b.eventsDelivered.Load() + async.Succeeded,
		EventsReplayed:    b.eventsReplayed.Load(),
		EventsDropped:     b.eventsDropped.Load(),
		HandlersExecuted:  b.syncExecuted.Load() + async.Dispatched,
		HandlerErrors:     b.handlerErrors.Load(),
		HandlerPanics:     b.handlerPanics.Load(),
		ActiveSubscribers: b.registry.CountActive(),
		CachedTopics:      cached,
		QueueDepth:        async.QueueLength,
	}
}
