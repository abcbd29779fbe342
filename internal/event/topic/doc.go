// Package topic provides dotted topic types and wildcard pattern matching
// for the event bus.
//
// # Topic Format
//
// Concrete topics are node labels built from the store root down:
//
//	store
//	store.names
//	store.names.0.name
//
// # Wildcards
//
// Subscription patterns may use two wildcards:
//
//   - "*" matches exactly one segment
//   - "**" matches zero or more segments
//
// Examples:
//
//	store.names.*         matches store.names.0, store.names.1 (not store.names.0.name)
//	store.names.**        matches store.names, store.names.0, store.names.0.name
//	store.*.email         matches store.login.email, store.signup.email
//	**                    matches everything
//
// # Usage
//
//	m := topic.NewMatcher()
//	m.Add(topic.Topic("store.names.*"))
//	m.Add(topic.Topic("store.names.0"))
//
//	matches := m.Match(topic.Topic("store.names.0"))
//	// matches contains both patterns
package topic
