package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func startAsync(t *testing.T, opts ...Option) *AsyncDispatcher {
	t.Helper()
	d := NewAsyncDispatcher(opts...)
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return d
}

func stopAsync(t *testing.T, d *AsyncDispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestAsyncDispatcher_Lifecycle(t *testing.T) {
	d := NewAsyncDispatcher(WithWorkerCount(2), WithQueueSize(8))

	if err := d.Enqueue(context.Background(), "k", nil, handlerFunc(nop)); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Enqueue before Start = %v, want ErrNotRunning", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	if !d.IsRunning() {
		t.Error("expected running")
	}
	stopAsync(t, d)
	if err := d.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second Stop = %v, want ErrNotRunning", err)
	}
	if err := d.Enqueue(context.Background(), "k", nil, handlerFunc(nop)); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Enqueue after Stop = %v, want ErrNotRunning", err)
	}
}

func TestAsyncDispatcher_DrainsOnStop(t *testing.T) {
	d := startAsync(t, WithWorkerCount(3), WithQueueSize(150))

	var count atomic.Int32
	for i := 0; i < 50; i++ {
		err := d.Enqueue(context.Background(), fmt.Sprint("sub-", i%5), i, handlerFunc(func(context.Context, any) error {
			count.Add(1)
			return nil
		}))
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	stopAsync(t, d)

	if got := count.Load(); got != 50 {
		t.Errorf("processed %d tasks, want 50", got)
	}
	stats := d.Stats()
	if stats.Enqueued != 50 || stats.Dispatched != 50 || stats.Succeeded != 50 || stats.QueueLength != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestAsyncDispatcher_KeyOrder(t *testing.T) {
	d := startAsync(t, WithWorkerCount(4), WithQueueSize(400))

	var mu sync.Mutex
	seen := map[string][]int{}
	record := handlerFunc(func(_ context.Context, event any) error {
		e := event.([2]any)
		mu.Lock()
		defer mu.Unlock()
		key := e[0].(string)
		seen[key] = append(seen[key], e[1].(int))
		return nil
	})

	keys := []string{"a", "b", "c", "d", "e", "f"}
	for i := 0; i < 30; i++ {
		for _, k := range keys {
			if err := d.Enqueue(context.Background(), k, [2]any{k, i}, record); err != nil {
				t.Fatalf("Enqueue: %v", err)
			}
		}
	}
	stopAsync(t, d)

	want := make([]int, 30)
	for i := range want {
		want[i] = i
	}
	for _, k := range keys {
		if diff := cmp.Diff(want, seen[k]); diff != "" {
			t.Errorf("key %s order (-want +got):\n%s", k, diff)
		}
	}
}

func TestAsyncDispatcher_QueueFull(t *testing.T) {
	d := startAsync(t, WithWorkerCount(1), WithQueueSize(1))

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	blocker := handlerFunc(func(context.Context, any) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	if err := d.Enqueue(context.Background(), "k", nil, blocker); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := d.Enqueue(context.Background(), "k", nil, blocker); err != nil {
		t.Fatal(err)
	}
	if err := d.Enqueue(context.Background(), "k", nil, blocker); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue on full queue = %v, want ErrQueueFull", err)
	}

	close(release)
	stopAsync(t, d)
	if got := d.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestAsyncDispatcher_PanicRecovered(t *testing.T) {
	var panics atomic.Int32
	d := startAsync(t,
		WithWorkerCount(1),
		WithPanicHandler(func(event any, v any, stack []byte) {
			panics.Add(1)
		}),
	)

	_ = d.Enqueue(context.Background(), "k", nil, handlerFunc(func(context.Context, any) error { panic("bad") }))
	_ = d.Enqueue(context.Background(), "k", nil, handlerFunc(nop))
	stopAsync(t, d)

	if panics.Load() != 1 {
		t.Errorf("panic handler called %d times, want 1", panics.Load())
	}
	stats := d.Stats()
	if stats.Panicked != 1 || stats.Succeeded != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
