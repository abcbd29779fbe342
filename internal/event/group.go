package event

import "sync"

// Unsubscriber is anything that can release a subscription, typically a
// Bus or the store.
type Unsubscriber interface {
	Off(sub Subscription) error
}

// Group collects subscriptions owned by one component so they can be
// released together, e.g. when a script engine shuts down.
type Group struct {
	owner Unsubscriber

	mu   sync.Mutex
	subs []Subscription
}

// NewGroup creates a group whose subscriptions are released through owner.
func NewGroup(owner Unsubscriber) *Group {
	return &Group{owner: owner}
}

// Track adds sub to the group. It returns sub and err unchanged so it can
// wrap an On call directly.
func (g *Group) Track(sub Subscription, err error) (Subscription, error) {
	if err != nil || sub == nil {
		return sub, err
	}
	g.mu.Lock()
	g.subs = append(g.subs, sub)
	g.mu.Unlock()
	return sub, nil
}

// Close releases every tracked subscription. Subscriptions that were
// already removed (fired once, or Off'd elsewhere) are skipped.
func (g *Group) Close() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, sub := range subs {
		_ = g.owner.Off(sub)
	}
}
