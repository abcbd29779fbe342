package event

import (
	"sort"
	"sync"

	"github.com/dshills/proxystore/internal/event/topic"
)

// Registry indexes subscriptions by pattern. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	subs    map[topic.Topic][]*subscription
	byID    map[string]*subscription
	matcher *topic.Matcher
	nextSeq uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subs:    make(map[topic.Topic][]*subscription),
		byID:    make(map[string]*subscription),
		matcher: topic.NewMatcher(),
	}
}

// Add registers a subscription.
func (r *Registry) Add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	sub.seq = r.nextSeq

	pattern := sub.Topic()
	r.subs[pattern] = append(r.subs[pattern], sub)
	r.byID[sub.ID()] = sub
	r.matcher.Add(pattern)
}

// Remove unregisters a subscription by ID and reports whether it existed.
func (r *Registry) Remove(subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[subID]
	if !ok {
		return false
	}
	r.removeLocked(sub)
	return true
}

// RemoveTopic unregisters every subscription on exactly pattern and returns
// them.
func (r *Registry) RemoveTopic(pattern topic.Topic) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subs[pattern]
	if len(subs) == 0 {
		return nil
	}
	removed := make([]*subscription, len(subs))
	copy(removed, subs)

	for _, sub := range removed {
		delete(r.byID, sub.ID())
	}
	delete(r.subs, pattern)
	r.matcher.Remove(pattern)
	return removed
}

func (r *Registry) removeLocked(sub *subscription) {
	pattern := sub.Topic()
	subs := r.subs[pattern]
	for i, s := range subs {
		if s == sub {
			r.subs[pattern] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(r.subs[pattern]) == 0 {
		delete(r.subs, pattern)
		r.matcher.Remove(pattern)
	}
	delete(r.byID, sub.ID())
}

// Get returns a subscription by ID.
func (r *Registry) Get(subID string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.byID[subID]
	return sub, ok
}

// Match returns the active subscriptions whose pattern matches eventTopic,
// ordered by priority and then by registration order.
func (r *Registry) Match(eventTopic topic.Topic) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patterns := r.matcher.Match(eventTopic)
	if len(patterns) == 0 {
		return nil
	}

	var result []*subscription
	for _, p := range patterns {
		for _, sub := range r.subs[p] {
			if sub.IsActive() {
				result = append(result, sub)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		pi, pj := result[i].Config().Priority, result[j].Config().Priority
		if pi != pj {
			return pi < pj
		}
		return result[i].seq < result[j].seq
	})
	return result
}

// Count returns the number of registered subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// CountByTopic returns the number of subscriptions on exactly pattern.
func (r *Registry) CountByTopic(pattern topic.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[pattern])
}

// CountActive returns the number of active subscriptions.
func (r *Registry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sub := range r.byID {
		if sub.IsActive() {
			n++
		}
	}
	return n
}

// Topics returns the registered patterns in sorted order.
func (r *Registry) Topics() []topic.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]topic.Topic, 0, len(r.subs))
	for t := range r.subs {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}

// Clear removes every subscription.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = make(map[topic.Topic][]*subscription)
	r.byID = make(map[string]*subscription)
	r.matcher.Clear()
}
