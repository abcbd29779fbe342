package store

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Kind classifies a value.
type Kind int

const (
	// KindPrimitive is nil, a bool, a string, a number or any other
	// non-container value.
	KindPrimitive Kind = iota
	// KindSequence is an ordered list.
	KindSequence
	// KindMapping is a keyed object.
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "primitive"
	}
}

// KindOf reports how v would be stored. Any Go slice or array other than
// []byte is a sequence; any map is a mapping.
func KindOf(v any) Kind {
	switch t := v.(type) {
	case nil:
		return KindPrimitive
	case []any:
		return KindSequence
	case map[string]any:
		return KindMapping
	case *Node:
		if t == nil {
			return KindPrimitive
		}
		if t.Shape() == ShapeSequence {
			return KindSequence
		}
		return KindMapping
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return KindPrimitive
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return KindPrimitive
		}
		return KindSequence
	case reflect.Array:
		return KindSequence
	case reflect.Map:
		return KindMapping
	default:
		return KindPrimitive
	}
}

// Traversable reports whether v is a sequence or a mapping.
func Traversable(v any) bool {
	return KindOf(v) != KindPrimitive
}

// Equal compares two values structurally. Numbers compare by value across
// Go numeric types, and a *Node compares as its snapshot.
func Equal(a, b any) bool {
	return equalPlain(plain(a, nil), plain(b, nil))
}

// plain converts v into nil, primitives, []any and map[string]any,
// copying containers. Nodes owned by locked are snapshotted without taking
// the lock again.
func plain(v any, locked *Store) any {
	switch t := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64:
		return v
	case *Node:
		if t == nil {
			return nil
		}
		if locked != nil && t.store == locked {
			return t.snapshotLocked()
		}
		return t.Snapshot()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e, locked)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e, locked)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = plain(rv.Index(i).Interface(), locked)
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = plain(iter.Value().Interface(), locked)
		}
		return out
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return rv.Interface()
	}
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.Interface {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

// sortedKeys returns the keys of m in lexical order so that populating a
// node from a Go map emits notifications deterministically.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalPlain(a, b any) bool {
	switch ta := a.(type) {
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !equalPlain(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !equalPlain(va, vb) {
				return false
			}
		}
		return true
	}
	switch b.(type) {
	case []any, map[string]any:
		return false
	}
	return equalPrimitive(a, b)
}

func equalPrimitive(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := toNumber(a); ok {
		nb, ok := toNumber(b)
		return ok && na.equal(nb)
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// number holds a numeric value without losing integer precision.
type number struct {
	kind byte // 'i', 'u' or 'f'
	i    int64
	u    uint64
	f    float64
}

func toNumber(v any) (number, bool) {
	switch t := v.(type) {
	case int:
		return number{kind: 'i', i: int64(t)}, true
	case int8:
		return number{kind: 'i', i: int64(t)}, true
	case int16:
		return number{kind: 'i', i: int64(t)}, true
	case int32:
		return number{kind: 'i', i: int64(t)}, true
	case int64:
		return number{kind: 'i', i: t}, true
	case uint:
		return number{kind: 'u', u: uint64(t)}, true
	case uint8:
		return number{kind: 'u', u: uint64(t)}, true
	case uint16:
		return number{kind: 'u', u: uint64(t)}, true
	case uint32:
		return number{kind: 'u', u: uint64(t)}, true
	case uint64:
		return number{kind: 'u', u: t}, true
	case uintptr:
		return number{kind: 'u', u: uint64(t)}, true
	case float32:
		return number{kind: 'f', f: float64(t)}, true
	case float64:
		return number{kind: 'f', f: t}, true
	}
	return number{}, false
}

func (n number) equal(o number) bool {
	switch {
	case n.kind == 'f' || o.kind == 'f':
		// NaN equals NaN here so repeated NaN writes stay idempotent.
		nf, of := n.float(), o.float()
		return nf == of || (math.IsNaN(nf) && math.IsNaN(of))
	case n.kind == 'i' && o.kind == 'i':
		return n.i == o.i
	case n.kind == 'u' && o.kind == 'u':
		return n.u == o.u
	case n.kind == 'i':
		return n.i >= 0 && uint64(n.i) == o.u
	default:
		return o.i >= 0 && uint64(o.i) == n.u
	}
}

func (n number) float() float64 {
	switch n.kind {
	case 'i':
		return float64(n.i)
	case 'u':
		return float64(n.u)
	default:
		return n.f
	}
}
