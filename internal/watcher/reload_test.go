package watcher

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/loader"
	"github.com/dshills/proxystore/internal/store"
)

// memFS is an in-memory loader.FileSystem whose files can change.
type memFS struct {
	mu    sync.Mutex
	files map[string]string
}

func (m *memFS) set(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

func (m *memFS) Open(string) (fs.File, error) { return nil, fs.ErrNotExist }

func (m *memFS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(data), nil
}

func (m *memFS) Stat(string) (fs.FileInfo, error) { return nil, fs.ErrNotExist }

type reloadFixture struct {
	mock    *mockWatcher
	fsys    *memFS
	store   *store.Store
	results chan error
	cancel  context.CancelFunc
	done    chan error
}

func newReloadFixture(t *testing.T, files map[string]string, paths ...string) *reloadFixture {
	t.Helper()
	f := &reloadFixture{
		mock:    newMockWatcher(),
		fsys:    &memFS{files: files},
		store:   store.New(),
		results: make(chan error, 10),
		done:    make(chan error, 1),
	}
	r := NewReloader(f.mock, f.store, loader.NewWithFS(f.fsys), paths,
		WithOnReload(func(err error) { f.results <- err }))
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- r.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-f.done
		_ = f.store.Close(context.Background())
	})
	return f
}

func (f *reloadFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.results:
		return err
	case <-time.After(time.Second):
		t.Fatal("no reload")
		return nil
	}
}

func TestReloaderAppliesChanges(t *testing.T) {
	f := newReloadFixture(t, map[string]string{
		"/base.json": `{"login": {"email": "a"}}`,
		"/local.toml": "[login]\nname = \"n\"\n",
	}, "/base.json", "/local.toml")

	var got []any
	var mu sync.Mutex
	_, err := f.store.On("store.login", func(ctx context.Context, ch store.Change) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ch.Value)
		return nil
	}, event.WithLazy(false))
	if err != nil {
		t.Fatal(err)
	}

	f.mock.send("/base.json", OpWrite)
	if err := f.wait(t); err != nil {
		t.Fatalf("reload: %v", err)
	}

	want := map[string]any{"login": map[string]any{"email": "a", "name": "n"}}
	if diff := cmp.Diff(want, f.store.Snapshot()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	f.fsys.set("/base.json", `{"login": {"email": "b"}}`)
	f.mock.send("/base.json", OpCreate)
	if err := f.wait(t); err != nil {
		t.Fatalf("reload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	wantEvents := []any{
		map[string]any{"email": "a", "name": "n"},
		map[string]any{"email": "b", "name": "n"},
	}
	if diff := cmp.Diff(wantEvents, got); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}

func TestReloaderKeepsStateOnError(t *testing.T) {
	f := newReloadFixture(t, map[string]string{"/doc.json": `{"a": 1}`}, "/doc.json")

	f.mock.send("/doc.json", OpWrite)
	if err := f.wait(t); err != nil {
		t.Fatal(err)
	}

	f.fsys.set("/doc.json", `{"a": `)
	f.mock.send("/doc.json", OpWrite)
	var perr *loader.ParseError
	if err := f.wait(t); !errors.As(err, &perr) {
		t.Errorf("err = %v, want *loader.ParseError", err)
	}

	f.fsys.set("/doc.json", `5`)
	f.mock.send("/doc.json", OpWrite)
	if err := f.wait(t); !errors.Is(err, store.ErrInvalidStoreValue) {
		t.Errorf("err = %v, want ErrInvalidStoreValue", err)
	}

	if diff := cmp.Diff(map[string]any{"a": int64(1)}, f.store.Snapshot()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestReloaderIgnoresRemoval(t *testing.T) {
	f := newReloadFixture(t, map[string]string{"/doc.json": `{"a": 1}`}, "/doc.json")

	f.mock.send("/doc.json", OpRemove)
	f.mock.send("/doc.json", OpWrite)
	if err := f.wait(t); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-f.results:
		t.Errorf("unexpected extra reload: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReloaderStopsWhenWatcherCloses(t *testing.T) {
	mock := newMockWatcher()
	s := store.New()
	defer s.Close(context.Background())

	r := NewReloader(mock, s, loader.New(), nil)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	_ = mock.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
