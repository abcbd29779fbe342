package event

import (
	"github.com/dshills/proxystore/internal/event/topic"
)

// FilterByTopic passes events whose topic matches pattern. Useful to narrow
// a "**" subscription.
func FilterByTopic(pattern topic.Topic) FilterFunc {
	return func(event any) bool {
		if tp, ok := event.(TopicProvider); ok {
			return tp.EventTopic().Matches(pattern)
		}
		return false
	}
}

// FilterExcludeTopic rejects events whose topic matches pattern.
func FilterExcludeTopic(pattern topic.Topic) FilterFunc {
	return FilterNot(FilterByTopic(pattern))
}

// FilterExcludeTopics rejects events whose topic matches any pattern.
func FilterExcludeTopics(patterns ...topic.Topic) FilterFunc {
	filters := make([]FilterFunc, len(patterns))
	for i, p := range patterns {
		filters[i] = FilterExcludeTopic(p)
	}
	return FilterAnd(filters...)
}

// FilterAnd requires every filter to pass.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(event any) bool {
		for _, f := range filters {
			if !f(event) {
				return false
			}
		}
		return true
	}
}

// FilterNot negates a filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(event any) bool {
		return !filter(event)
	}
}
