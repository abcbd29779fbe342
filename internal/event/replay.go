package event

import (
	"sort"

	"github.com/dshills/proxystore/internal/event/topic"
)

// replayCache keeps the last emitted event of every concrete topic. It is
// guarded by the bus mutex.
type replayCache struct {
	entries map[topic.Topic]cachedEvent
	seq     uint64
}

type cachedEvent struct {
	topic topic.Topic
	event any
	seq   uint64
}

func newReplayCache() *replayCache {
	return &replayCache{entries: make(map[topic.Topic]cachedEvent)}
}

func (c *replayCache) put(t topic.Topic, event any) {
	c.seq++
	c.entries[t] = cachedEvent{topic: t, event: event, seq: c.seq}
}

func (c *replayCache) get(t topic.Topic) (any, bool) {
	e, ok := c.entries[t]
	return e.event, ok
}

// match returns the cached events whose topic matches pattern, oldest
// emission first.
func (c *replayCache) match(pattern topic.Topic) []cachedEvent {
	if !pattern.IsWildcard() {
		if e, ok := c.entries[pattern]; ok {
			return []cachedEvent{e}
		}
		return nil
	}

	var out []cachedEvent
	for t, e := range c.entries {
		if t.Matches(pattern) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (c *replayCache) size() int {
	return len(c.entries)
}
