package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/proxystore/internal/event/topic"
)

// Event is a typed notification. Events are values; the bus never mutates
// one after it is emitted.
type Event[T any] struct {
	// Topic is the concrete address, e.g. "store.names.0".
	Topic topic.Topic

	// Payload is the notification data.
	Payload T

	// Metadata is filled in by NewEvent.
	Metadata Metadata
}

// Metadata is attached to every event.
type Metadata struct {
	// ID is a random UUID.
	ID string

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Source names the emitter, e.g. "store".
	Source string
}

// NewEvent creates an event with a fresh ID and timestamp.
func NewEvent[T any](t topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Topic:   t,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic implements TopicProvider.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Topic
}

// EventMetadata implements MetadataProvider.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// TopicProvider is implemented by anything the bus can emit.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// MetadataProvider is implemented by events that carry Metadata.
type MetadataProvider interface {
	EventMetadata() Metadata
}

type replayKey struct{}

// IsReplay reports whether a handler is being invoked with a cached event
// at subscription time rather than a live emission.
func IsReplay(ctx context.Context) bool {
	v, _ := ctx.Value(replayKey{}).(bool)
	return v
}

func withReplay(ctx context.Context) context.Context {
	return context.WithValue(ctx, replayKey{}, true)
}
