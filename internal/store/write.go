package store

import "strconv"

func itoa(i int) string {
	return strconv.Itoa(i)
}

// Put writes value under key. Containers are copied into new or reused
// nodes; a *Node value is copied from its snapshot.
func (n *Node) Put(key string, value any) error {
	return n.Set([]string{key}, value)
}

// Set writes value at path below the node, creating missing intermediate
// containers. Nothing is modified when the path runs through a primitive
// or when a path segment or a mapping key inside value is empty or holds a
// dot.
func (n *Node) Set(path []string, value any) error {
	if len(path) == 0 {
		return &PathError{Op: "set", Path: path, Err: ErrEmptyPath}
	}
	for i, seg := range path {
		if !validKey(seg) {
			return &PathError{Op: "set", Path: path[:i+1], Err: ErrInvalidKey}
		}
	}

	s := n.store
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &PathError{Op: "set", Path: path, Err: ErrStoreClosed}
	}
	v := plain(value, s)
	if err := checkKeys("set", v, path); err != nil {
		s.mu.Unlock()
		return err
	}

	target := n
	for i, seg := range path[:len(path)-1] {
		next, ok := target.child(seg).(*Node)
		if !ok {
			s.mu.Unlock()
			return &PathError{Op: "set", Path: path[:i+1], Err: ErrPrimitiveSegment}
		}
		target = next
	}
	target.put(path[len(path)-1], v)
	s.mu.Unlock()

	s.flush()
	return nil
}

// put is the write path. value must already be plain. The caller holds
// the store mutex. The key is stored in the node's current shape; only
// reads of intermediate segments coerce.
func (n *Node) put(key string, value any) {
	n.clearAuto()

	cur, exists := n.lookup(key)
	curNode, curIsNode := cur.(*Node)

	if !Traversable(value) {
		if exists && !curIsNode && equalPrimitive(cur, value) {
			return
		}
		n.assign(key, value)
		n.changed(key, nil, value)
		return
	}

	var child *Node
	if curIsNode && curNode.shapeOf(value) {
		if curNode.matches(value) {
			return
		}
		child = curNode
		child.populate(value)
	} else {
		child = n.store.wrap(value, n, key)
	}
	n.changed(key, child, nil)
}

// changed records or emits a change of key. While the node is suspended
// the key is marked dirty; otherwise the dirty descendants of child are
// emitted deepest first, then key itself, then every ancestor.
func (n *Node) changed(key string, child *Node, value any) {
	if n.suspended > 0 {
		if n.dirty == nil {
			n.dirty = make(map[string]struct{})
		}
		n.dirty[key] = struct{}{}
		return
	}
	if !n.attached() {
		return
	}

	label := n.label() + "." + key
	if child != nil {
		child.flushDirty(label)
		n.store.enqueue(label, child, nil)
	} else {
		n.store.enqueue(label, nil, value)
	}
	n.bubble()
}

// flushDirty emits the entries changed during suspension, children before
// parents, in key order, and clears the marks.
func (n *Node) flushDirty(label string) {
	if len(n.dirty) == 0 {
		return
	}
	dirty := n.dirty
	n.dirty = nil

	for _, k := range n.entryKeys() {
		if _, ok := dirty[k]; !ok {
			continue
		}
		v, _ := n.lookup(k)
		childLabel := label + "." + k
		if child, ok := v.(*Node); ok {
			child.flushDirty(childLabel)
			n.store.enqueue(childLabel, child, nil)
			continue
		}
		n.store.enqueue(childLabel, nil, v)
	}
}

// bubble emits the node's own label and each ancestor's up to the root.
func (n *Node) bubble() {
	for a := n; a != nil; a = a.parent {
		n.store.enqueue(a.label(), a, nil)
	}
}

// clearAuto marks the node and its ancestors as holding real data.
func (n *Node) clearAuto() {
	for a := n; a != nil && a.auto; a = a.parent {
		a.auto = false
	}
}

func (n *Node) shapeOf(value any) bool {
	switch value.(type) {
	case []any:
		return n.shape == ShapeSequence
	case map[string]any:
		return n.shape == ShapeMapping
	}
	return false
}

// matches compares the node with a plain value. Placeholders compare as
// absent.
func (n *Node) matches(value any) bool {
	if n.auto {
		return false
	}
	switch v := value.(type) {
	case []any:
		if n.shape != ShapeSequence || len(n.items) != len(v) {
			return false
		}
		for i, e := range v {
			if !entryMatches(n.items[i], e) {
				return false
			}
		}
		return true
	case map[string]any:
		if n.shape != ShapeMapping {
			return false
		}
		count := 0
		for _, k := range n.keys {
			if child, ok := n.fields[k].(*Node); ok && child.auto {
				continue
			}
			count++
		}
		if count != len(v) {
			return false
		}
		for k, e := range v {
			cur, ok := n.fields[k]
			if !ok || !entryMatches(cur, e) {
				return false
			}
		}
		return true
	}
	return false
}

func entryMatches(cur, value any) bool {
	if child, ok := cur.(*Node); ok {
		if child.auto {
			return value == nil
		}
		return child.matches(value)
	}
	if Traversable(value) {
		return false
	}
	return equalPrimitive(cur, value)
}
