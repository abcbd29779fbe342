package store

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// MarshalJSON encodes the node's snapshot with mapping keys in insertion
// order. A placeholder encodes as null.
func (n *Node) MarshalJSON() ([]byte, error) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) writeJSON(buf *bytes.Buffer) error {
	if n.auto {
		buf.WriteString("null")
		return nil
	}

	if n.shape == ShapeSequence {
		buf.WriteByte('[')
		for i, v := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}

	buf.WriteByte('{')
	first := true
	for _, k := range n.keys {
		v := n.fields[k]
		if child, ok := v.(*Node); ok && child.auto {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeJSONValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSONValue(buf *bytes.Buffer, v any) error {
	if child, ok := v.(*Node); ok {
		return child.writeJSON(buf)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// MarshalJSON encodes the whole tree.
func (s *Store) MarshalJSON() ([]byte, error) {
	return s.Root().MarshalJSON()
}

// Query evaluates a gjson path such as "names.#.name" or
// "names.#(age>30).name" against the current tree.
func (s *Store) Query(path string) (gjson.Result, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.GetBytes(data, path), nil
}
