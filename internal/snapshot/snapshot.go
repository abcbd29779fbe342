// Package snapshot writes store snapshots in the formats storectl offers:
// compact JSON, indented JSON with optional ANSI color, and msgpack.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/pretty"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/term"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatPretty  Format = "pretty"
	FormatMsgpack Format = "msgpack"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatPretty, FormatMsgpack:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Snapshotter is implemented by values that can produce a plain copy of
// themselves, such as store nodes.
type Snapshotter interface {
	Snapshot() any
}

// Encoder writes values in one format.
type Encoder struct {
	w      io.Writer
	format Format
	color  bool
}

// NewEncoder creates an encoder. Pretty output is colored when w is a
// terminal.
func NewEncoder(w io.Writer, format Format) *Encoder {
	return &Encoder{w: w, format: format, color: IsTerminal(w)}
}

// SetColor forces color on or off for pretty output.
func (e *Encoder) SetColor(on bool) {
	e.color = on
}

// Encode writes v. JSON formats end with a newline.
func (e *Encoder) Encode(v any) error {
	var (
		data []byte
		err  error
	)
	switch e.format {
	case FormatJSON:
		data, err = JSON(v)
		data = append(data, '\n')
	case FormatPretty:
		data, err = Pretty(v, e.color)
	case FormatMsgpack:
		data, err = Msgpack(v)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, e.format)
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write(data)
	return err
}

// JSON encodes v compactly. A json.Marshaler, such as a store node, keeps
// its own key order.
func JSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return data, nil
}

// Pretty encodes v as indented JSON, colored when color is set.
func Pretty(v any, color bool) ([]byte, error) {
	data, err := JSON(v)
	if err != nil {
		return nil, err
	}
	data = pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "  "})
	if color {
		data = pretty.Color(data, nil)
	}
	return data, nil
}

// Msgpack encodes the plain form of v with sorted mapping keys.
func Msgpack(v any) ([]byte, error) {
	if s, ok := v.(Snapshotter); ok {
		v = s.Snapshot()
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding msgpack: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMsgpack decodes msgpack data into plain values with int64, uint64
// and float64 numbers.
func DecodeMsgpack(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, fmt.Errorf("decoding msgpack: %w", err)
	}
	return v, nil
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
