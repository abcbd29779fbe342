package store

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidStoreValue is returned by Set for a value that is neither a
	// mapping nor a sequence.
	ErrInvalidStoreValue = errors.New("Store must be an array or an object.")

	// ErrDirectAssignment is returned by Assign. The store handle cannot be
	// replaced; use Set.
	ErrDirectAssignment = errors.New("do not replace the store directly, use Set instead")

	// ErrEmptyPath is returned for writes without a target key.
	ErrEmptyPath = errors.New("empty path")

	// ErrInvalidKey is returned for a key that cannot form a label: an
	// empty key or one containing a dot.
	ErrInvalidKey = errors.New("key must be non-empty and contain no dot")

	// ErrPrimitiveSegment is returned when a write path runs through a
	// primitive value.
	ErrPrimitiveSegment = errors.New("path runs through a primitive value")

	// ErrCascadeLimit is reported by Err when a drain cycle exceeded the
	// configured maximum and notifications were dropped.
	ErrCascadeLimit = errors.New("notification cascade limit exceeded")

	// ErrStoreClosed is returned for writes after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// PathError records the path and operation that failed.
type PathError struct {
	Op   string
	Path []string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + strings.Join(e.Path, ".") + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}
