package store

// Default fills the empty parts of the node's subtree from value without
// overwriting anything already set.
//
// A primitive value replaces the node in its parent only when the node has
// no entries. A container value is applied key by key: missing children
// are vivified and receive their part of the default, and children that
// already hold a primitive are left alone. Every fill goes through the
// normal write path and is notified like any other write.
func (n *Node) Default(value any) error {
	s := n.store
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	v := plain(value, s)
	if err := checkKeys("default", v, nil); err != nil {
		s.mu.Unlock()
		return err
	}
	n.applyDefault(v)
	s.mu.Unlock()

	s.flush()
	return nil
}

func (n *Node) applyDefault(value any) {
	switch v := value.(type) {
	case []any:
		for i, e := range v {
			n.defaultChild(itoa(i), e)
		}
	case map[string]any:
		for _, k := range sortedKeys(v) {
			n.defaultChild(k, v[k])
		}
	default:
		if n.parent == nil || n.length() > 0 {
			return
		}
		n.parent.put(n.key, v)
	}
}

func (n *Node) defaultChild(key string, value any) {
	if child, ok := n.child(key).(*Node); ok {
		child.applyDefault(value)
	}
}
