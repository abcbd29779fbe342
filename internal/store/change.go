package store

import (
	"context"

	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/event/topic"
	"github.com/dshills/proxystore/internal/logging"
)

// Change is the payload of every store notification.
type Change struct {
	// Path is the label that changed, e.g. "store.names.0.name".
	Path string

	// Value is the new value. For containers it is a snapshot taken when
	// the notification is delivered.
	Value any

	// Node is the changed container, or nil for primitive entries.
	Node *Node
}

// Handler receives store notifications. Returned errors are logged and
// never affect the write that caused the notification.
type Handler func(ctx context.Context, ch Change) error

// pending is a queued notification.
type pending struct {
	label string
	node  *Node
	value any
}

// enqueue appends a notification. The caller holds the store mutex.
func (s *Store) enqueue(label string, node *Node, value any) {
	s.queue = append(s.queue, pending{label: label, node: node, value: value})
}

// flush delivers queued notifications in order. Only one goroutine drains
// at a time; notifications queued by handlers, or by other goroutines while
// a drain is running, are delivered by the running drain.
func (s *Store) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	delivered := 0
	for len(s.queue) > 0 {
		if s.maxCascade > 0 && delivered >= s.maxCascade {
			dropped := len(s.queue)
			s.queue = nil
			if s.err == nil {
				s.err = ErrCascadeLimit
			}
			s.mu.Unlock()
			s.logger.Error("cascade limit %d reached, dropped %d notifications", s.maxCascade, dropped)
			s.mu.Lock()
			break
		}

		p := s.queue[0]
		s.queue[0] = pending{}
		s.queue = s.queue[1:]

		ch := Change{Path: p.label, Value: p.value}
		if p.node != nil {
			ch.Node = p.node
			ch.Value = p.node.snapshotLocked()
		}
		delivered++
		s.mu.Unlock()

		s.emit(ch)

		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

func (s *Store) emit(ch Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("topic", ch.Path).Error("notification panicked: %v", r)
		}
	}()

	if s.logger.Enabled(logging.LevelDebug) {
		s.logger.WithField("topic", ch.Path).Debug("emit")
	}
	err := s.bus.Emit(context.Background(), event.NewEvent(topic.Topic(ch.Path), ch, EventSource))
	if err != nil {
		s.logger.WithField("topic", ch.Path).Warn("emit failed: %v", err)
	}
}
