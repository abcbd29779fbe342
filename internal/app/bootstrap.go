package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/event/topic"
	"github.com/dshills/proxystore/internal/loader"
	"github.com/dshills/proxystore/internal/logging"
	"github.com/dshills/proxystore/internal/script"
	"github.com/dshills/proxystore/internal/snapshot"
	"github.com/dshills/proxystore/internal/store"
	"github.com/dshills/proxystore/internal/watcher"
)

// bootstrapper handles component initialization with cleanup on failure.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initLogger,
		b.initOutput,
		b.initStore,
		b.initDocuments,
		b.initDefaults,
		b.initAssignments,
		b.initEvents,
		b.initScript,
		b.initWatcher,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

func (b *bootstrapper) initLogger() error {
	level, err := logging.ParseLevelStrict(b.app.cfg.Log.Level)
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}
	b.app.logger = logging.New(logging.Config{
		Level:  level,
		Output: b.app.opts.Stderr,
		Prefix: "storectl",
	})
	return nil
}

func (b *bootstrapper) initOutput() error {
	format, err := snapshot.ParseFormat(b.app.cfg.Output.Format)
	if err != nil {
		return &InitError{Component: "output", Err: err}
	}
	enc := snapshot.NewEncoder(b.app.opts.Stdout, format)
	switch b.app.cfg.Output.Color {
	case "always":
		enc.SetColor(true)
	case "never":
		enc.SetColor(false)
	}
	b.app.out = enc
	return nil
}

func (b *bootstrapper) initStore() error {
	cfg := b.app.cfg
	b.app.store = store.New(
		store.WithLogger(b.app.logger),
		store.WithMaxCascade(cfg.Store.MaxCascade),
		store.WithBusOptions(
			event.WithAsyncWorkerCount(cfg.Bus.AsyncWorkers),
			event.WithAsyncQueueSize(cfg.Bus.QueueSize),
		),
	)
	b.initOrder = append(b.initOrder, "store")

	sub, err := b.app.store.On("**", func(context.Context, store.Change) error {
		b.app.metrics.RecordNotification()
		return nil
	}, event.WithLazy(false))
	if err != nil {
		return &InitError{Component: "store", Err: err}
	}
	b.app.subs = append(b.app.subs, sub)
	return nil
}

func (b *bootstrapper) initDocuments() error {
	b.app.loader = loader.NewWithFS(b.app.opts.FS)
	if len(b.app.opts.Files) == 0 {
		return nil
	}

	doc, err := b.app.loader.LoadAll(b.app.opts.Files...)
	if err != nil {
		return &InitError{Component: "documents", Err: err}
	}
	if _, err := b.app.store.Set(doc); err != nil {
		return &InitError{Component: "documents", Err: err}
	}
	b.app.logger.Debug("loaded %d document(s)", len(b.app.opts.Files))
	return nil
}

func (b *bootstrapper) initDefaults() error {
	if path := b.app.opts.Defaults; path != "" {
		doc, err := b.app.loader.Load(path)
		if err != nil {
			return &InitError{Component: "defaults", Err: err}
		}
		if err := b.app.store.Default(doc); err != nil {
			return &InitError{Component: "defaults", Err: err}
		}
	}

	if len(b.app.opts.DefaultAssignments) > 0 {
		doc, err := loader.FromAssignments(b.app.opts.DefaultAssignments)
		if err != nil {
			return &InitError{Component: "defaults", Err: err}
		}
		if err := b.app.store.Default(doc); err != nil {
			return &InitError{Component: "defaults", Err: err}
		}
	}
	return nil
}

func (b *bootstrapper) initAssignments() error {
	for _, a := range b.app.opts.Assignments {
		path, value, err := loader.SplitAssignment(a)
		if err != nil {
			return &InitError{Component: "assignments", Err: err}
		}
		if err := b.app.store.Put(path, value); err != nil {
			return &InitError{Component: "assignments", Err: fmt.Errorf("%s: %w", path, err)}
		}
		b.app.metrics.RecordWrite()
	}
	return nil
}

// initEvents subscribes after the initial writes, so lazy replay prints
// the current value of every matching label before live changes.
func (b *bootstrapper) initEvents() error {
	var opts []event.SubscriptionOption
	if b.app.cfg.Bus.AsyncEvents {
		opts = append(opts, event.WithDeliveryMode(event.DeliveryAsync))
	}
	if len(b.app.opts.Exclude) > 0 {
		patterns := make([]topic.Topic, 0, len(b.app.opts.Exclude))
		for _, p := range b.app.opts.Exclude {
			tp := topic.Topic(p)
			if !tp.IsValid() {
				return &InitError{Component: "events", Err: fmt.Errorf("exclude %q: %w", p, event.ErrInvalidTopic)}
			}
			patterns = append(patterns, tp)
		}
		opts = append(opts, event.WithFilter(event.FilterExcludeTopics(patterns...)))
	}
	for _, pattern := range b.app.opts.Events {
		sub, err := b.app.store.On(pattern, b.app.printChange, opts...)
		if err != nil {
			return &InitError{Component: "events", Err: fmt.Errorf("%s: %w", pattern, err)}
		}
		b.app.subs = append(b.app.subs, sub)
	}
	return nil
}

func (b *bootstrapper) initScript() error {
	if b.app.opts.Script == "" {
		return nil
	}
	b.app.engine = script.New(b.app.store,
		script.WithTimeout(b.app.cfg.Script.Timeout.Duration),
		script.WithOutput(b.app.opts.Stdout),
		script.WithLogger(b.app.logger),
	)
	b.initOrder = append(b.initOrder, "script")
	return nil
}

func (b *bootstrapper) initWatcher() error {
	if !b.app.opts.Watch {
		return nil
	}
	if len(b.app.opts.Files) == 0 {
		return &InitError{Component: "watcher", Err: ErrNothingToWatch}
	}

	w := b.app.opts.Watcher
	if w == nil {
		fw, err := watcher.NewFSNotifyWatcher()
		if err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
		w = fw
	}
	if d := b.app.cfg.Watch.Debounce.Duration; d > 0 {
		w = watcher.NewDebouncedWatcher(w, d)
	}
	b.app.watcher = w
	b.initOrder = append(b.initOrder, "watcher")

	b.app.reloader = watcher.NewReloader(w, b.app.store, b.app.loader, b.app.opts.Files,
		watcher.WithLogger(b.app.logger),
		watcher.WithOnReload(b.app.metrics.RecordReload),
	)
	if err := b.app.reloader.Start(); err != nil {
		return &InitError{Component: "watcher", Err: err}
	}
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(ctx, b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(ctx context.Context, component string) {
	switch component {
	case "watcher":
		if b.app.watcher != nil {
			_ = b.app.watcher.Close()
			b.app.watcher = nil
			b.app.reloader = nil
		}
	case "script":
		if b.app.engine != nil {
			_ = b.app.engine.Close()
			b.app.engine = nil
		}
	case "store":
		for _, sub := range b.app.subs {
			sub.Cancel()
		}
		b.app.subs = nil
		if b.app.store != nil {
			_ = b.app.store.Close(ctx)
		}
	}
}
