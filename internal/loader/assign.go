package loader

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FromAssignments builds a mapping from "path=value" assignments such as
// "login.email=a@b.c" or "names.0={\"name\":\"senica\"}". A value that is
// valid JSON is used as JSON; anything else is a string. Paths use sjson
// syntax, so "list.-1=x" appends.
func FromAssignments(assignments []string) (map[string]any, error) {
	doc := []byte("{}")
	for _, a := range assignments {
		path, value, ok := strings.Cut(a, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssignment, a)
		}

		var err error
		if gjson.Valid(value) {
			doc, err = sjson.SetRawBytes(doc, path, []byte(value))
		} else {
			doc, err = sjson.SetBytes(doc, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAssignment, a, err)
		}
	}

	v, err := Decode(FormatJSON, "<assignments>", doc)
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return m, nil
}

// SplitAssignment splits "path=value" and decodes value like
// FromAssignments does.
func SplitAssignment(a string) (path string, value any, err error) {
	path, raw, ok := strings.Cut(a, "=")
	if !ok || path == "" {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidAssignment, a)
	}
	if !gjson.Valid(raw) {
		return path, raw, nil
	}
	v, err := Decode(FormatJSON, "<assignment>", []byte(raw))
	if err != nil {
		return "", nil, err
	}
	return path, v, nil
}
