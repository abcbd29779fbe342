// Package app provides the storectl host. It wires the store, document
// loader, Lua engine and file watcher together and manages their
// lifecycle: New bootstraps components in dependency order, Run blocks
// while scripts and live reload are active, and Shutdown releases
// everything in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/proxystore/internal/config"
	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/loader"
	"github.com/dshills/proxystore/internal/logging"
	"github.com/dshills/proxystore/internal/script"
	"github.com/dshills/proxystore/internal/snapshot"
	"github.com/dshills/proxystore/internal/store"
	"github.com/dshills/proxystore/internal/watcher"
)

// Options configures the application.
type Options struct {
	// Config holds resolved settings. It is validated by New.
	Config config.Config

	// Files are documents merged in order to form the initial tree.
	Files []string

	// Defaults is a document applied with Store.Default.
	Defaults string

	// DefaultAssignments are path=value pairs applied as defaults.
	DefaultAssignments []string

	// Assignments are path=value pairs written after defaults.
	Assignments []string

	// Script is a Lua file run by Run.
	Script string

	// Events are label patterns whose notifications are printed.
	Events []string

	// Exclude are label patterns whose notifications are never printed,
	// even when they match Events.
	Exclude []string

	// Watch reloads Files when they change until Run's context ends.
	Watch bool

	// Stdout receives snapshots, events and script output.
	Stdout io.Writer

	// Stderr receives log lines.
	Stderr io.Writer

	// FS reads documents. Nil uses the OS file system.
	FS loader.FileSystem

	// Watcher replaces the fsnotify watcher used by Watch.
	Watcher watcher.Watcher
}

// Application is the central coordinator for all storectl components.
type Application struct {
	opts Options
	cfg  config.Config

	logger   *logging.Logger
	store    *store.Store
	loader   *loader.Loader
	engine   *script.Engine
	watcher  watcher.Watcher
	reloader *watcher.Reloader
	subs     []event.Subscription

	outMu sync.Mutex
	out   *snapshot.Encoder

	metrics *Metrics

	running atomic.Bool
	closed  atomic.Bool
}

// New creates an Application and bootstraps its components.
func New(opts Options) (*Application, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.FS == nil {
		opts.FS = loader.DefaultFS()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	app := &Application{
		opts:    opts,
		cfg:     opts.Config,
		metrics: NewMetrics(),
	}
	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Store returns the application's store.
func (app *Application) Store() *store.Store {
	return app.store
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Metrics returns the application metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// Run executes the script, if any, and then, in watch mode, applies
// reloads and delivers script callbacks until ctx is done. A cancelled
// ctx is a normal exit.
func (app *Application) Run(ctx context.Context) error {
	if app.closed.Load() {
		return ErrShutdown
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.engine != nil && app.opts.Script != "" {
		start := time.Now()
		err := app.engine.RunFile(ctx, app.opts.Script)
		app.metrics.RecordScript(time.Since(start), err)
		if err != nil {
			return &ComponentError{Component: "script", Action: "run " + app.opts.Script, Err: err}
		}
	}

	if app.reloader == nil {
		return nil
	}
	return app.serve(ctx)
}

func (app *Application) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info("watching %d document(s)", len(app.opts.Files))

	errc := make(chan error, 2)
	workers := 1
	go func() { errc <- app.reloader.Run(ctx) }()
	if app.engine != nil {
		workers++
		go func() { errc <- app.engine.Serve(ctx) }()
	}

	var first error
	for i := 0; i < workers; i++ {
		err := <-errc
		cancel()
		if first == nil && !isNormalExit(err) {
			first = err
		}
	}
	return first
}

func isNormalExit(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, script.ErrEngineClosed)
}

// PrintSnapshot writes the whole tree.
func (app *Application) PrintSnapshot() error {
	return app.encode(app.store.Root())
}

// PrintPath writes the value at a dotted path without creating it.
func (app *Application) PrintPath(path string) error {
	v, ok := app.store.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	return app.encode(v)
}

// PrintQuery writes the result of a gjson query over the tree.
func (app *Application) PrintQuery(query string) error {
	res, err := app.store.Query(query)
	if err != nil {
		return err
	}
	if !res.Exists() {
		return fmt.Errorf("%w: %s", ErrPathNotFound, query)
	}
	return app.encode(res.Value())
}

func (app *Application) printChange(_ context.Context, ch store.Change) error {
	return app.encode(map[string]any{"path": ch.Path, "value": ch.Value})
}

func (app *Application) encode(v any) error {
	app.outMu.Lock()
	defer app.outMu.Unlock()
	return app.out.Encode(v)
}

// LogStats writes metrics and bus counters at info level.
func (app *Application) LogStats() {
	m := app.metrics.Snapshot()
	bus := app.store.Stats()
	app.logger.WithFields(map[string]any{
		"uptime":         m.Uptime.Round(time.Millisecond),
		"writes":         m.Writes,
		"notifications":  m.Notifications,
		"reloads":        m.Reloads,
		"reload_errors":  m.ReloadFailures,
		"scripts":        m.ScriptRuns,
		"handler_errors": bus.HandlerErrors,
		"handler_panics": bus.HandlerPanics,
		"replayed":       bus.EventsReplayed,
	}).Info("stats")
}

// Shutdown releases every component. It is safe to call more than once.
func (app *Application) Shutdown() error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if app.watcher != nil {
		errs = append(errs, app.watcher.Close())
	}
	if app.engine != nil {
		errs = append(errs, app.engine.Close())
	}
	for _, sub := range app.subs {
		sub.Cancel()
	}
	app.subs = nil
	if err := app.store.Err(); err != nil {
		app.logger.Warn("store: %v", err)
	}
	errs = append(errs, app.store.Close(ctx))
	return errors.Join(errs...)
}
