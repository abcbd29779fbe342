package event

import (
	"sync/atomic"

	"github.com/dshills/proxystore/internal/event/topic"
)

// SubscriptionState is the lifecycle state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive receives events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStatePaused is registered but skipped during delivery.
	SubscriptionStatePaused

	// SubscriptionStateCancelled is permanently removed.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStatePaused:
		return "paused"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription is a handle returned by On and One.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Topic returns the subscribed pattern.
	Topic() topic.Topic

	// State returns the current state.
	State() SubscriptionState

	// IsActive reports whether events are being delivered.
	IsActive() bool

	// Pause stops delivery until Resume. Events emitted while paused are
	// not queued; the replay cache still records them.
	Pause()

	// Resume restarts delivery after Pause.
	Resume()

	// Cancel stops delivery permanently. Use Bus.Off to also release the
	// registry entry.
	Cancel()
}

// SubscriptionConfig holds the per-subscription options.
type SubscriptionConfig struct {
	// Priority orders handlers for one emission.
	Priority Priority

	// DeliveryMode selects sync or async invocation.
	DeliveryMode DeliveryMode

	// Filter, when set, must return true for an event to be delivered.
	Filter FilterFunc

	// Once removes the subscription after its first delivery.
	Once bool

	// Lazy replays the last cached value of every matching topic when the
	// subscription is created. On by default.
	Lazy bool
}

// DefaultSubscriptionConfig returns a lazy, sync, normal-priority config.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		Priority:     PriorityNormal,
		DeliveryMode: DeliverySync,
		Lazy:         true,
	}
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Priority = p
	}
}

// WithDeliveryMode sets the delivery mode.
func WithDeliveryMode(m DeliveryMode) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.DeliveryMode = m
	}
}

// WithFilter sets a filter predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// WithOnce makes the subscription fire at most once.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

// WithLazy enables or disables replay of cached values on subscribe.
func WithLazy(lazy bool) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Lazy = lazy
	}
}

type subscription struct {
	id      string
	seq     uint64
	topic   topic.Topic
	handler Handler
	config  SubscriptionConfig
	state   atomic.Int32
	fired   atomic.Bool
}

func newSubscription(id string, t topic.Topic, h Handler, opts ...SubscriptionOption) *subscription {
	config := DefaultSubscriptionConfig()
	for _, opt := range opts {
		opt(&config)
	}

	s := &subscription{
		id:      id,
		topic:   t,
		handler: h,
		config:  config,
	}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Topic() topic.Topic {
	return s.topic
}

func (s *subscription) Config() SubscriptionConfig {
	return s.config
}

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscription) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

func (s *subscription) IsCancelled() bool {
	return s.State() == SubscriptionStateCancelled
}

func (s *subscription) Pause() {
	s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStatePaused))
}

func (s *subscription) Resume() {
	s.state.CompareAndSwap(int32(SubscriptionStatePaused), int32(SubscriptionStateActive))
}

func (s *subscription) Cancel() {
	s.state.Store(int32(SubscriptionStateCancelled))
}

// shouldDeliver checks state and filter.
func (s *subscription) shouldDeliver(event any) bool {
	if !s.IsActive() {
		return false
	}
	if s.config.Filter != nil && !s.config.Filter(event) {
		return false
	}
	return true
}

// claim reserves a delivery. A once subscription can be claimed a single
// time across all goroutines.
func (s *subscription) claim() bool {
	if !s.config.Once {
		return true
	}
	return s.fired.CompareAndSwap(false, true)
}
