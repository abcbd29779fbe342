// Package watcher reloads store documents when their files change.
//
// FSNotifyWatcher reports changes to individual files. It watches each
// file's directory so that editors which save by renaming a temporary file
// over the original keep being tracked. DebouncedWatcher coalesces a burst
// of changes across all documents into one event, and Reloader turns the resulting events into a
// Store.Set of the reloaded documents.
package watcher

import (
	"errors"
	"strings"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("file is already being watched")
	ErrNotWatching     = errors.New("file is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op is a set of file operations.
type Op uint32

const (
	// OpCreate indicates the file was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates the file was written to.
	OpWrite
	// OpRemove indicates the file was removed.
	OpRemove
	// OpRename indicates the file was renamed away.
	OpRename
)

func (op Op) String() string {
	var names []string
	for _, o := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
	} {
		if op.Has(o.op) {
			names = append(names, o.name)
		}
	}
	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, "|")
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change to a watched file.
type Event struct {
	// Path is the absolute path of the file.
	Path string

	// Op is the set of operations seen.
	Op Op

	// Timestamp is when the last operation was seen.
	Timestamp time.Time

	// Paths lists every file of a coalesced event in the order first
	// seen. It is empty for events straight from a file watcher.
	Paths []string
}

// Files returns Paths, or Path alone when Paths is empty.
func (e Event) Files() []string {
	if len(e.Paths) > 0 {
		return e.Paths
	}
	return []string{e.Path}
}

// Stats provides watcher status information.
type Stats struct {
	WatchedFiles  int
	PendingEvents int
	TotalEvents   int64
	Errors        int64
	LastError     error
	StartTime     time.Time
}

// Watcher reports changes to files.
type Watcher interface {
	// Watch starts watching a file. Returns ErrAlreadyWatching if the file
	// is already watched.
	Watch(path string) error

	// Unwatch stops watching a file.
	Unwatch(path string) error

	// Events returns the channel of change events. It is closed by Close.
	Events() <-chan Event

	// Errors returns the channel of watcher errors. It is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error

	// Stats returns watcher statistics.
	Stats() Stats
}
