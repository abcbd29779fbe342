package watcher

import (
	"slices"
	"sync"
	"time"
)

// DefaultDelay is the debounce delay used when none is given.
const DefaultDelay = 100 * time.Millisecond

// DebouncedWatcher wraps a Watcher and turns a burst of changes to any of
// the watched documents into a single event. The burst ends once no event
// has arrived for the delay, or once it has lasted maxWait, so a file that
// is rewritten continuously still produces reloads. The emitted event
// carries the union of the operations seen and every changed path.
type DebouncedWatcher struct {
	inner   Watcher
	delay   time.Duration
	maxWait time.Duration

	mu     sync.Mutex
	batch  *Event
	opened time.Time
	gen    uint64
	timer  *time.Timer
	closed bool

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// DebounceOption configures a DebouncedWatcher.
type DebounceOption func(*DebouncedWatcher)

// WithMaxWait bounds how long a burst may be held back. The default is ten
// times the delay.
func WithMaxWait(d time.Duration) DebounceOption {
	return func(dw *DebouncedWatcher) {
		if d > 0 {
			dw.maxWait = d
		}
	}
}

// NewDebouncedWatcher wraps inner. A non-positive delay uses DefaultDelay.
func NewDebouncedWatcher(inner Watcher, delay time.Duration, opts ...DebounceOption) *DebouncedWatcher {
	if delay <= 0 {
		delay = DefaultDelay
	}
	dw := &DebouncedWatcher{
		inner:   inner,
		delay:   delay,
		maxWait: 10 * delay,
		events:  make(chan Event, 16),
		errors:  make(chan error, 16),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(dw)
	}

	dw.wg.Add(1)
	go dw.loop()
	return dw
}

// Watch starts watching a file.
func (dw *DebouncedWatcher) Watch(path string) error {
	return dw.inner.Watch(path)
}

// Unwatch stops watching a file.
func (dw *DebouncedWatcher) Unwatch(path string) error {
	return dw.inner.Unwatch(path)
}

// Events returns the coalesced event channel.
func (dw *DebouncedWatcher) Events() <-chan Event {
	return dw.events
}

// Errors returns the error channel.
func (dw *DebouncedWatcher) Errors() <-chan error {
	return dw.errors
}

// Close drops any pending burst and closes the inner watcher.
func (dw *DebouncedWatcher) Close() error {
	dw.mu.Lock()
	if dw.closed {
		dw.mu.Unlock()
		return nil
	}
	dw.closed = true
	dw.reset()
	close(dw.done)
	dw.mu.Unlock()

	dw.wg.Wait()
	close(dw.events)
	close(dw.errors)
	return dw.inner.Close()
}

// Stats returns the inner watcher's statistics; PendingEvents is the
// number of files in the pending burst.
func (dw *DebouncedWatcher) Stats() Stats {
	stats := dw.inner.Stats()
	stats.PendingEvents = dw.PendingCount()
	return stats
}

// PendingCount returns the number of files changed in the pending burst.
func (dw *DebouncedWatcher) PendingCount() int {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.batch == nil {
		return 0
	}
	return len(dw.batch.Paths)
}

// Flush emits the pending burst now.
func (dw *DebouncedWatcher) Flush() {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.emit()
}

func (dw *DebouncedWatcher) loop() {
	defer dw.wg.Done()
	for {
		select {
		case <-dw.done:
			return
		case ev, ok := <-dw.inner.Events():
			if !ok {
				return
			}
			dw.add(ev)
		case err, ok := <-dw.inner.Errors():
			if !ok {
				return
			}
			select {
			case dw.errors <- err:
			default:
			}
		}
	}
}

func (dw *DebouncedWatcher) add(ev Event) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.closed {
		return
	}

	if dw.batch == nil {
		dw.batch = &Event{Path: ev.Path, Op: ev.Op, Timestamp: ev.Timestamp, Paths: []string{ev.Path}}
		dw.opened = time.Now()
		gen := dw.gen
		dw.timer = time.AfterFunc(dw.delay, func() { dw.expire(gen) })
		return
	}

	dw.batch.Op |= ev.Op
	dw.batch.Timestamp = ev.Timestamp
	if !slices.Contains(dw.batch.Paths, ev.Path) {
		dw.batch.Paths = append(dw.batch.Paths, ev.Path)
	}
	wait := min(dw.delay, dw.maxWait-time.Since(dw.opened))
	dw.timer.Reset(max(wait, 0))
}

// expire fires the burst opened in generation gen. Timers of earlier
// bursts find a newer generation and do nothing.
func (dw *DebouncedWatcher) expire(gen uint64) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if gen != dw.gen || dw.closed {
		return
	}
	dw.emit()
}

// emit sends the pending burst without blocking. The caller holds mu.
func (dw *DebouncedWatcher) emit() {
	if dw.batch == nil || dw.closed {
		return
	}
	ev := *dw.batch
	dw.reset()
	select {
	case dw.events <- ev:
	default:
	}
}

func (dw *DebouncedWatcher) reset() {
	if dw.timer != nil {
		dw.timer.Stop()
	}
	dw.batch = nil
	dw.timer = nil
	dw.gen++
}

var _ Watcher = (*DebouncedWatcher)(nil)
