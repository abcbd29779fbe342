package store

import (
	"strconv"
)

// Shape is the container variant a node currently holds.
type Shape int

const (
	// ShapeMapping holds string keys in insertion order.
	ShapeMapping Shape = iota
	// ShapeSequence holds an ordered list.
	ShapeSequence
)

func (s Shape) String() string {
	if s == ShapeSequence {
		return "sequence"
	}
	return "mapping"
}

// Node wraps one mapping or sequence in the tree. A node keeps its
// identity when its shape changes, so subscriptions on its label survive
// coercion.
//
// Node methods lock the owning Store and are safe for concurrent use.
type Node struct {
	store  *Store
	parent *Node
	key    string

	shape  Shape
	keys   []string
	fields map[string]any
	items  []any

	// auto marks a placeholder created by a read that has not received
	// data yet.
	auto bool

	// suspended is non-zero while a bulk assignment populates the node.
	// Changes made meanwhile are recorded in dirty and emitted afterwards.
	suspended int
	dirty     map[string]struct{}
}

func (s *Store) newNode(parent *Node, key string, shape Shape) *Node {
	n := &Node{
		store:  s,
		parent: parent,
		key:    key,
		shape:  shape,
		auto:   true,
	}
	if shape == ShapeMapping {
		n.fields = make(map[string]any)
	}
	return n
}

// Label returns the notification topic of the node.
func (n *Node) Label() string {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.label()
}

func (n *Node) label() string {
	if n.parent == nil {
		return rootLabel
	}
	return n.parent.label() + "." + n.key
}

// Key returns the key under which the node sits in its parent.
func (n *Node) Key() string {
	return n.key
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Shape returns the current container variant.
func (n *Node) Shape() Shape {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.shape
}

// IsAuto reports whether the node is a placeholder that has never been
// written to.
func (n *Node) IsAuto() bool {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.auto
}

// Len returns the sequence length or the number of mapping keys.
func (n *Node) Len() int {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.length()
}

func (n *Node) length() int {
	if n.shape == ShapeSequence {
		return len(n.items)
	}
	return len(n.keys)
}

// Keys returns the mapping keys in insertion order, or the indices of a
// sequence.
func (n *Node) Keys() []string {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.entryKeys()
}

func (n *Node) entryKeys() []string {
	if n.shape == ShapeSequence {
		keys := make([]string, len(n.items))
		for i := range n.items {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	return append([]string(nil), n.keys...)
}

// lookup returns the entry stored under key without vivifying.
func (n *Node) lookup(key string) (any, bool) {
	if n.shape == ShapeSequence {
		i, ok := index(key)
		if !ok || i >= len(n.items) {
			return nil, false
		}
		return n.items[i], true
	}
	v, ok := n.fields[key]
	return v, ok
}

// assign stores value under key. A non-index key turns a sequence into a
// mapping and drops its entries; an index past the end extends the
// sequence with placeholder holes.
func (n *Node) assign(key string, value any) {
	if n.shape == ShapeSequence {
		if i, ok := index(key); ok {
			if i < len(n.items) {
				n.items[i] = value
				return
			}
			n.grow(i)
			n.items = append(n.items, value)
			return
		}
		n.items = nil
		n.shape = ShapeMapping
		n.keys = nil
		n.fields = make(map[string]any)
	}
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = value
}

// remove deletes a mapping key.
func (n *Node) remove(key string) {
	if _, ok := n.fields[key]; !ok {
		return
	}
	delete(n.fields, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i:i], n.keys[i+1:]...)
			break
		}
	}
	delete(n.dirty, key)
}

// grow pads a sequence to size with holes. A hole is an untouched
// placeholder: it reads as null, and the first read or write through it
// vivifies it like a missing key.
func (n *Node) grow(size int) {
	for i := len(n.items); i < size; i++ {
		n.items = append(n.items, n.store.newNode(n, strconv.Itoa(i), ShapeMapping))
	}
}

// resize truncates or extends a sequence.
func (n *Node) resize(size int) {
	if size < len(n.items) {
		for i := size; i < len(n.items); i++ {
			delete(n.dirty, strconv.Itoa(i))
		}
		n.items = n.items[:size:size]
		return
	}
	n.grow(size)
}

// toSequence changes an empty mapping into an empty sequence.
func (n *Node) toSequence() {
	n.shape = ShapeSequence
	n.keys = nil
	n.fields = nil
	n.items = nil
}

// toMapping changes a sequence into a mapping, keeping its entries under
// their index keys.
func (n *Node) toMapping() {
	n.shape = ShapeMapping
	n.keys = make([]string, 0, len(n.items))
	n.fields = make(map[string]any, len(n.items))
	for i, v := range n.items {
		k := strconv.Itoa(i)
		n.keys = append(n.keys, k)
		n.fields[k] = v
	}
	n.items = nil
}

// attached reports whether the node is still reachable from the current
// root. Nodes dropped by a rebuild or a coercion keep their parent pointer
// but are no longer referenced by it.
func (n *Node) attached() bool {
	for c := n; ; c = c.parent {
		if c.parent == nil {
			return c == c.store.root
		}
		v, _ := c.parent.lookup(c.key)
		if child, ok := v.(*Node); !ok || child != c {
			return false
		}
	}
}

// Snapshot returns a deep copy of the node's data as nil, primitives,
// []any and map[string]any. A placeholder node yields nil; placeholders
// inside a mapping are omitted and inside a sequence become nil.
func (n *Node) Snapshot() any {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.snapshotLocked()
}

func (n *Node) snapshotLocked() any {
	if n.auto {
		return nil
	}
	if n.shape == ShapeSequence {
		out := make([]any, len(n.items))
		for i, v := range n.items {
			if child, ok := v.(*Node); ok {
				out[i] = child.snapshotLocked()
				continue
			}
			out[i] = v
		}
		return out
	}
	out := make(map[string]any, len(n.keys))
	for _, k := range n.keys {
		v := n.fields[k]
		if child, ok := v.(*Node); ok {
			if child.auto {
				continue
			}
			out[k] = child.snapshotLocked()
			continue
		}
		out[k] = v
	}
	return out
}
