package store

// wrap builds a node for the container value and links it into parent at
// key. Entries are written through put so that every nested container is
// wrapped the same way and changes are recorded for notification.
func (s *Store) wrap(value any, parent *Node, key string) *Node {
	shape := ShapeMapping
	if KindOf(value) == KindSequence {
		shape = ShapeSequence
	}

	node := s.newNode(parent, key, shape)
	if parent != nil {
		parent.assign(key, node)
	}
	node.populate(value)
	return node
}

// populate writes every entry of value into the node under suspension.
// A sequence is first resized to the incoming length and a mapping loses
// the keys that value does not carry. Entries equal to the current ones
// are skipped individually.
func (n *Node) populate(value any) {
	n.suspended++
	defer func() { n.suspended-- }()

	switch v := value.(type) {
	case []any:
		if n.shape == ShapeSequence {
			n.resize(len(v))
		}
		for i, e := range v {
			n.put(itoa(i), e)
		}
	case map[string]any:
		if n.shape == ShapeMapping {
			for _, k := range append([]string(nil), n.keys...) {
				if _, ok := v[k]; !ok {
					n.remove(k)
				}
			}
		}
		for _, k := range sortedKeys(v) {
			n.put(k, v[k])
		}
	}
	n.auto = false
}
