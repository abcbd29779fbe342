package store

import (
	"strconv"
	"strings"
)

// SplitPath splits a dotted path into segments. The empty path addresses
// the root.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// validKey reports whether key can be a label segment.
func validKey(key string) bool {
	return key != "" && !strings.Contains(key, ".")
}

// checkKeys rejects a plain value holding a mapping key that cannot be a
// label segment. path is the location of v and is reported in the error.
func checkKeys(op string, v any, path []string) error {
	switch t := v.(type) {
	case []any:
		for i, e := range t {
			if err := checkKeys(op, e, append(path[:len(path):len(path)], itoa(i))); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			p := append(path[:len(path):len(path)], k)
			if !validKey(k) {
				return &PathError{Op: op, Path: p, Err: ErrInvalidKey}
			}
			if err := checkKeys(op, t[k], p); err != nil {
				return err
			}
		}
	}
	return nil
}

// index parses a canonical non-negative decimal index: "0" and "12" are
// indices, "01", "-1", "+1" and "1.0" are plain keys.
func index(key string) (int, bool) {
	if key == "" || len(key) > 1 && key[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, false
	}
	return n, true
}
