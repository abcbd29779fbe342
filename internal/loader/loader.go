// Package loader reads documents that seed a store.
//
// JSON, TOML and YAML files are decoded into plain values: nil, bool,
// string, int64, float64, []any and map[string]any. The format is chosen
// from the file extension. Assignments of the form "path=value" can be
// turned into a nested document with FromAssignments.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	fs.FS
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// Open implements fs.FS.
func (OSFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the OS file system.
func DefaultFS() FileSystem {
	return OSFS{}
}

// Loader decodes document files.
type Loader struct {
	fs FileSystem
}

// New creates a loader reading from the OS file system.
func New() *Loader {
	return &Loader{fs: DefaultFS()}
}

// NewWithFS creates a loader reading from fsys.
func NewWithFS(fsys FileSystem) *Loader {
	if fsys == nil {
		fsys = DefaultFS()
	}
	return &Loader{fs: fsys}
}

// Load reads and decodes the document at path.
func (l *Loader) Load(path string) (any, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Decode(format, path, data)
}

// LoadOptional is Load for a file that may be absent. A missing file
// yields nil, nil.
func (l *Loader) LoadOptional(path string) (any, error) {
	v, err := l.Load(path)
	if errors.Is(err, ErrFileNotFound) {
		return nil, nil
	}
	return v, err
}

// LoadAll loads every path and deep merges the mappings in order, later
// files overriding earlier ones. A document that is not a mapping replaces
// everything loaded before it.
func (l *Loader) LoadAll(paths ...string) (any, error) {
	var out any
	for _, p := range paths {
		doc, err := l.Load(p)
		if err != nil {
			return nil, err
		}
		dst, dstOK := out.(map[string]any)
		src, srcOK := doc.(map[string]any)
		if dstOK && srcOK {
			out = DeepMerge(dst, src)
			continue
		}
		out = doc
	}
	return out, nil
}

// LoadReader decodes a document of the given format from r.
func LoadReader(r io.Reader, format Format) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return Decode(format, "<reader>", data)
}
