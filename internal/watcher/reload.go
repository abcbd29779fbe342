package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dshills/proxystore/internal/loader"
	"github.com/dshills/proxystore/internal/logging"
	"github.com/dshills/proxystore/internal/store"
)

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithLogger sets the reloader's logger.
func WithLogger(l *logging.Logger) ReloaderOption {
	return func(r *Reloader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOnReload registers a callback run after every reload attempt with
// its error, if any.
func WithOnReload(fn func(err error)) ReloaderOption {
	return func(r *Reloader) {
		r.onReload = fn
	}
}

// Reloader replaces a store's tree whenever one of its source documents
// changes. All paths are reloaded and merged in order, as at startup, and
// the result is applied with Store.Set, so subscribers see the full set of
// notifications and keep their subscriptions.
type Reloader struct {
	w      Watcher
	store  *store.Store
	loader *loader.Loader
	paths  []string

	logger   *logging.Logger
	onReload func(err error)
	reloads  atomic.Int64
	failures atomic.Int64
}

// NewReloader creates a reloader for paths. Call Start to begin watching.
func NewReloader(w Watcher, s *store.Store, l *loader.Loader, paths []string, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		w:      w,
		store:  s,
		loader: l,
		paths:  append([]string(nil), paths...),
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("watcher")
	return r
}

// Start watches every path.
func (r *Reloader) Start() error {
	for _, p := range r.paths {
		if err := r.w.Watch(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
	}
	return nil
}

// Run applies reloads until ctx is done or the watcher is closed.
func (r *Reloader) Run(ctx context.Context) error {
	events := r.w.Events()
	errs := r.w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			files := strings.Join(ev.Files(), ",")
			if !ev.Op.Has(OpCreate) && !ev.Op.Has(OpWrite) {
				r.logger.WithField("file", files).Warn("document %s, keeping current state", ev.Op)
				continue
			}
			r.logger.WithField("file", files).Info("document changed")
			_ = r.Reload()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Error("watch error: %v", err)
		}
	}
}

// Reload loads every path and applies the merged document. A document
// that fails to load or is not a container leaves the store unchanged.
func (r *Reloader) Reload() (err error) {
	defer func() {
		if err != nil {
			r.failures.Add(1)
			r.logger.Error("reload failed: %v", err)
		} else {
			r.reloads.Add(1)
		}
		if r.onReload != nil {
			r.onReload(err)
		}
	}()

	doc, err := r.loader.LoadAll(r.paths...)
	if err != nil {
		return err
	}
	if _, err := r.store.Set(doc); err != nil {
		return fmt.Errorf("applying reload: %w", err)
	}
	return nil
}

// Counts returns the number of successful and failed reloads.
func (r *Reloader) Counts() (reloads, failures int64) {
	return r.reloads.Load(), r.failures.Load()
}
