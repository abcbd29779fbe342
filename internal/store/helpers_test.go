package store

import (
	"context"
	"sync"
	"testing"

	"github.com/dshills/proxystore/internal/event"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// trace records the labels of delivered notifications.
type trace struct {
	mu      sync.Mutex
	paths   []string
	changes []Change
}

func (tr *trace) handler(ctx context.Context, ch Change) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.paths = append(tr.paths, ch.Path)
	tr.changes = append(tr.changes, ch)
	return nil
}

func (tr *trace) got() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.paths...)
}

func (tr *trace) reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.paths = nil
	tr.changes = nil
}

// watch subscribes to every label without replay.
func watch(t *testing.T, s *Store, pattern string) *trace {
	t.Helper()
	tr := &trace{}
	if _, err := s.On(pattern, tr.handler, event.WithLazy(false)); err != nil {
		t.Fatalf("On(%q): %v", pattern, err)
	}
	return tr
}

func mustPut(t *testing.T, s *Store, path string, value any) {
	t.Helper()
	if err := s.Put(path, value); err != nil {
		t.Fatalf("Put(%q): %v", path, err)
	}
}
