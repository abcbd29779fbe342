package store

const (
	rootLabel = "store"

	// lengthKey reads as Len() unless the node holds an explicit entry
	// with that name.
	lengthKey = "length"
)

// Get reads the value at path below the node, creating placeholder nodes
// for missing segments. It returns a primitive, a *Node, or nil when a
// primitive sits on the path.
func (n *Node) Get(path ...string) any {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.get(path)
}

// Node is Get for paths that address a container. It returns nil when the
// value at path is a primitive.
func (n *Node) Node(path ...string) *Node {
	child, _ := n.Get(path...).(*Node)
	return child
}

// Lookup reads the value at path without creating anything. The boolean
// is false when a segment is missing.
func (n *Node) Lookup(path ...string) (any, bool) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	var cur any = n
	for _, seg := range path {
		node, ok := cur.(*Node)
		if !ok {
			return nil, false
		}
		if v, ok := node.lookup(seg); ok {
			cur = v
			continue
		}
		if seg == lengthKey {
			cur = node.length()
			continue
		}
		return nil, false
	}
	return cur, true
}

func (n *Node) get(path []string) any {
	var cur any = n
	for _, seg := range path {
		node, ok := cur.(*Node)
		if !ok {
			return nil
		}
		cur = node.child(seg)
	}
	return cur
}

// child returns the entry under name, vivifying a placeholder when it is
// missing.
func (n *Node) child(name string) any {
	if v, ok := n.lookup(name); ok {
		return v
	}
	if name == lengthKey {
		return n.length()
	}
	return n.vivify(name)
}

// vivify creates a placeholder mapping under name. The index-or-name form
// of the first access decides the container's shape:
//
//   - an index on an empty mapping turns it into a sequence
//   - an index on a populated mapping is stored as a string key
//   - a name on a sequence turns it into a mapping, keeping its entries
//     under their index keys
//
// Reads never discard data.
func (n *Node) vivify(name string) *Node {
	_, isIndex := index(name)
	switch {
	case isIndex && n.shape == ShapeMapping && len(n.keys) == 0:
		n.toSequence()
	case !isIndex && n.shape == ShapeSequence:
		n.toMapping()
	}

	child := n.store.newNode(n, name, ShapeMapping)
	n.assign(name, child)
	return child
}
