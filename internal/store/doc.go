// Package store implements a reactive in-memory tree of mappings and
// sequences.
//
// Every container in the tree is wrapped by a *Node. Nodes are addressed
// by path segments; reading a missing segment creates an empty placeholder
// node (auto-vivification), so
//
//	s := store.New()
//	_ = s.Put("a.1.b", "x")
//
// leaves "a" as a two-element sequence whose slot 0 is empty and whose
// slot 1 holds {"b": "x"}.
//
// # Notifications
//
// Each node has a label derived from its position: "store" for the root
// and parent.Label()+"."+key below it. A write emits one notification per
// changed path, then one for the written node's parent, then one for every
// ancestor up to "store". When a mapping or sequence is assigned, all
// changed descendants are emitted deepest first before the assigned node
// itself, so a handler on a parent can rely on its children already being
// settled. Writing a value equal to the current one emits nothing.
//
// Notifications travel over an event.Bus that remembers the last value of
// every label. Subscribing after a label has fired delivers that value
// immediately unless event.WithLazy(false) is passed.
//
// # Concurrency
//
// All tree access is serialized by one mutex per Store. Notifications
// produced while the mutex is held are queued and delivered after it is
// released, one at a time, so a handler may read and write the store.
// Writes made from a handler are queued behind the notifications already
// pending.
package store
