package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFormat is returned for a file extension that maps to no
	// decoder.
	ErrUnknownFormat = errors.New("unknown document format")

	// ErrFileNotFound is returned by Load for a missing file.
	ErrFileNotFound = errors.New("document not found")

	// ErrInvalidAssignment is returned for an assignment without "=" or
	// with an empty path.
	ErrInvalidAssignment = errors.New("invalid assignment")
)

// ParseError represents an error while decoding a document.
type ParseError struct {
	// Path is the file that failed to parse.
	Path string
	// Line is the line number where the error occurred, if known.
	Line int
	// Column is the column number where the error occurred, if known.
	Column int
	// Message describes the error.
	Message string
	// Err is the underlying decoder error.
	Err error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
