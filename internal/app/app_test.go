package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/proxystore/internal/config"
	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/loader"
	"github.com/dshills/proxystore/internal/store"
	"github.com/dshills/proxystore/internal/watcher"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Output.Format = "json"
	cfg.Output.Color = "never"
	cfg.Watch.Debounce = config.Duration{}
	return cfg
}

// newTestApp fills unset options with test doubles and shuts the
// application down when the test ends.
func newTestApp(t *testing.T, opts Options) (*Application, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	if opts.Stdout == nil {
		opts.Stdout = &out
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Config == (config.Config{}) {
		opts.Config = testConfig()
	}

	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a, &out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewLoadsDocuments(t *testing.T) {
	fsys := fstest.MapFS{
		"base.json": {Data: []byte(`{"name": "ann", "tags": ["x"]}`)},
		"over.yaml": {Data: []byte("name: bob\nage: 30\n")},
	}
	a, out := newTestApp(t, Options{FS: fsys, Files: []string{"base.json", "over.yaml"}})

	want := map[string]any{
		"name": "bob",
		"age":  int64(30),
		"tags": []any{"x"},
	}
	if diff := cmp.Diff(want, a.Store().Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if err := a.PrintSnapshot(); err != nil {
		t.Fatalf("PrintSnapshot() error = %v", err)
	}
	if got, want := out.String(), `{"age":30,"name":"bob","tags":["x"]}`+"\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestDefaultsAndAssignments(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json":      {Data: []byte(`{"a": 1}`)},
		"defaults.toml": {Data: []byte("a = 5\nb = \"x\"\n")},
	}
	a, _ := newTestApp(t, Options{
		FS:                 fsys,
		Files:              []string{"doc.json"},
		Defaults:           "defaults.toml",
		DefaultAssignments: []string{"c.d=true", "a=9"},
		Assignments:        []string{"e.0=7", "f=hello"},
	})

	want := map[string]any{
		"a": int64(1),
		"b": "x",
		"c": map[string]any{"d": true},
		"e": map[string]any{"0": int64(7)},
		"f": "hello",
	}
	if diff := cmp.Diff(want, a.Store().Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if got := a.Metrics().Snapshot().Writes; got != 2 {
		t.Errorf("Writes = %d, want 2", got)
	}
}

func TestPrint(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json": {Data: []byte(`{"names": [{"name": "ann"}, {"name": "bob"}]}`)},
	}

	tests := []struct {
		name  string
		print func(*Application) error
		want  string
	}{
		{"path", func(a *Application) error { return a.PrintPath("names.1.name") }, `"bob"` + "\n"},
		{"container path", func(a *Application) error { return a.PrintPath("names.0") }, `{"name":"ann"}` + "\n"},
		{"length", func(a *Application) error { return a.PrintPath("names.length") }, "2\n"},
		{"query count", func(a *Application) error { return a.PrintQuery("names.#") }, "2\n"},
		{"query list", func(a *Application) error { return a.PrintQuery("names.#.name") }, `["ann","bob"]` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out := newTestApp(t, Options{FS: fsys, Files: []string{"doc.json"}})
			if err := tt.print(a); err != nil {
				t.Fatalf("print error = %v", err)
			}
			if got := out.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintMissing(t *testing.T) {
	a, out := newTestApp(t, Options{})

	if err := a.PrintPath("nope.deeper"); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("PrintPath() error = %v, want ErrPathNotFound", err)
	}
	if err := a.PrintQuery("nope"); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("PrintQuery() error = %v, want ErrPathNotFound", err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing", out.String())
	}
	if _, ok := a.Store().Lookup("nope"); ok {
		t.Error("PrintPath created the missing path")
	}
}

func TestEvents(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json": {Data: []byte(`{"name": "ann"}`)},
	}
	a, out := newTestApp(t, Options{
		FS:     fsys,
		Files:  []string{"doc.json"},
		Events: []string{"store.name"},
	})

	if err := a.Store().Put("name", "bob"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	want := `{"path":"store.name","value":"ann"}` + "\n" +
		`{"path":"store.name","value":"bob"}` + "\n"
	if got := out.String(); got != want {
		t.Errorf("events = %q, want %q", got, want)
	}
	if got := a.Metrics().Snapshot().Notifications; got == 0 {
		t.Error("Notifications = 0, want > 0")
	}
}

func TestEventsExclude(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json": {Data: []byte(`{"login": {"name": "ann", "token": "t1"}}`)},
	}
	a, out := newTestApp(t, Options{
		FS:      fsys,
		Files:   []string{"doc.json"},
		Events:  []string{"store.login.*"},
		Exclude: []string{"store.login.token"},
	})
	out.Reset()

	if err := a.Store().Put("login", map[string]any{"name": "bob", "token": "t2"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	want := `{"path":"store.login.name","value":"bob"}` + "\n"
	if got := out.String(); got != want {
		t.Errorf("events = %q, want %q", got, want)
	}
	if got := a.Metrics().Snapshot().Notifications; got < 3 {
		t.Errorf("Notifications = %d, want every label counted", got)
	}
}

// syncBuffer is a bytes.Buffer safe for use by worker goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncEvents(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json": {Data: []byte(`{"name": "ann"}`)},
	}
	cfg := testConfig()
	cfg.Bus.AsyncEvents = true
	cfg.Bus.AsyncWorkers = 1

	var out syncBuffer
	a, _ := newTestApp(t, Options{
		Config: cfg,
		FS:     fsys,
		Files:  []string{"doc.json"},
		Events: []string{"store.name"},
		Stdout: &out,
	})

	if err := a.Store().Put("name", "bob"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	want := `{"path":"store.name","value":"ann"}` + "\n" +
		`{"path":"store.name","value":"bob"}` + "\n"
	waitFor(t, "async events", func() bool { return out.String() == want })
}

func writeScript(t *testing.T, code string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lua")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunScript(t *testing.T) {
	script := writeScript(t, `
store.set("greeting", "hi")
print(store.get("greeting"))
`)
	a, out := newTestApp(t, Options{Script: script})

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.String(); got != "hi\n" {
		t.Errorf("output = %q, want %q", got, "hi\n")
	}
	if got := a.Store().Get("greeting"); got != "hi" {
		t.Errorf("greeting = %v, want hi", got)
	}

	m := a.Metrics().Snapshot()
	if m.ScriptRuns != 1 || m.ScriptErrors != 0 {
		t.Errorf("script runs/errors = %d/%d, want 1/0", m.ScriptRuns, m.ScriptErrors)
	}
}

func TestRunScriptError(t *testing.T) {
	script := writeScript(t, `error("boom")`)
	a, _ := newTestApp(t, Options{Script: script})

	err := a.Run(context.Background())
	var ce *ComponentError
	if !errors.As(err, &ce) || ce.Component != "script" {
		t.Fatalf("Run() error = %v, want script ComponentError", err)
	}
	if got := a.Metrics().Snapshot().ScriptErrors; got != 1 {
		t.Errorf("ScriptErrors = %d, want 1", got)
	}
}

// stubWatcher is a channel-backed watcher.Watcher.
type stubWatcher struct {
	mu      sync.Mutex
	events  chan watcher.Event
	errors  chan error
	watched []string
	closed  bool
}

func newStubWatcher() *stubWatcher {
	return &stubWatcher{
		events: make(chan watcher.Event, 10),
		errors: make(chan error, 10),
	}
}

func (w *stubWatcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched = append(w.watched, path)
	return nil
}

func (w *stubWatcher) Unwatch(string) error { return nil }
func (w *stubWatcher) Events() <-chan watcher.Event { return w.events }
func (w *stubWatcher) Errors() <-chan error { return w.errors }
func (w *stubWatcher) Stats() watcher.Stats { return watcher.Stats{} }

func (w *stubWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.events)
		close(w.errors)
	}
	return nil
}

func TestWatchReloads(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json": {Data: []byte(`{"name": "ann"}`)},
	}
	script := writeScript(t, `
store.on("store.name", function(path, value)
  store.set("seen", value)
end, false)
`)
	w := newStubWatcher()
	a, _ := newTestApp(t, Options{
		FS:      fsys,
		Files:   []string{"doc.json"},
		Script:  script,
		Watch:   true,
		Watcher: w,
	})

	if diff := cmp.Diff([]string{"doc.json"}, w.watched); diff != "" {
		t.Errorf("watched mismatch (-want +got):\n%s", diff)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	fsys["doc.json"] = &fstest.MapFile{Data: []byte(`{"name": "bob"}`)}
	w.events <- watcher.Event{Path: "doc.json", Op: watcher.OpWrite}

	waitFor(t, "script callback", func() bool {
		v, _ := a.Store().Lookup("seen")
		return v == "bob"
	})
	waitFor(t, "reload count", func() bool {
		return a.Metrics().Snapshot().Reloads == 1
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatchKeepsStateOnBadDocument(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json": {Data: []byte(`{"name": "ann"}`)},
	}
	w := newStubWatcher()
	a, _ := newTestApp(t, Options{FS: fsys, Files: []string{"doc.json"}, Watch: true, Watcher: w})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	fsys["doc.json"] = &fstest.MapFile{Data: []byte(`{"name": `)}
	w.events <- watcher.Event{Path: "doc.json", Op: watcher.OpWrite}

	waitFor(t, "failed reload", func() bool {
		return a.Metrics().Snapshot().ReloadFailures == 1
	})
	if got := a.Store().Get("name"); got != "ann" {
		t.Errorf("name = %v, want ann", got)
	}
}

func TestNewErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"doc.json":    {Data: []byte(`{"a": 1}`)},
		"scalar.json": {Data: []byte(`5`)},
	}
	badLevel := testConfig()
	badLevel.Log.Level = "loud"

	tests := []struct {
		name      string
		opts      Options
		component string
		target    error
	}{
		{"invalid config", Options{Config: badLevel}, "config", config.ErrValidationFailed},
		{"missing document", Options{Files: []string{"gone.json"}}, "documents", loader.ErrFileNotFound},
		{"scalar document", Options{Files: []string{"scalar.json"}}, "documents", store.ErrInvalidStoreValue},
		{"missing defaults", Options{Defaults: "gone.yaml"}, "defaults", loader.ErrFileNotFound},
		{"bad assignment", Options{Assignments: []string{"novalue"}}, "assignments", loader.ErrInvalidAssignment},
		{"write through primitive", Options{Files: []string{"doc.json"}, Assignments: []string{"a.b=1"}}, "assignments", store.ErrPrimitiveSegment},
		{"bad exclude pattern", Options{Events: []string{"store.**"}, Exclude: []string{"store..x"}}, "events", event.ErrInvalidTopic},
		{"watch without files", Options{Watch: true, Watcher: newStubWatcher()}, "watcher", ErrNothingToWatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.FS = fsys
			opts.Stdout = io.Discard
			opts.Stderr = io.Discard
			if opts.Config == (config.Config{}) {
				opts.Config = testConfig()
			}

			_, err := New(opts)
			var ie *InitError
			if !errors.As(err, &ie) {
				t.Fatalf("New() error = %v, want InitError", err)
			}
			if ie.Component != tt.component {
				t.Errorf("component = %q, want %q", ie.Component, tt.component)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("New() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestShutdown(t *testing.T) {
	a, _ := newTestApp(t, Options{})

	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if err := a.Run(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("Run() after Shutdown error = %v, want ErrShutdown", err)
	}
	if err := a.Store().Put("x", 1); !errors.Is(err, store.ErrStoreClosed) {
		t.Errorf("Put() after Shutdown error = %v, want ErrStoreClosed", err)
	}
}
