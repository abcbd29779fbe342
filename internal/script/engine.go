package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/logging"
	"github.com/dshills/proxystore/internal/store"
)

// DefaultTimeout bounds one Run and every callback drain.
const DefaultTimeout = 5 * time.Second

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the execution timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

// WithOutput redirects print.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		if w != nil {
			e.out = w
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine is a sandboxed Lua state bound to a store.
type Engine struct {
	mu sync.Mutex
	L  *lua.LState

	store  *store.Store
	group  *event.Group
	subs   map[string]event.Subscription
	out    io.Writer
	logger *logging.Logger

	timeout time.Duration
	closed  bool

	// queued callback invocations; see Serve.
	qmu      sync.Mutex
	queue    []call
	draining bool
	wake     chan struct{}
}

type call struct {
	fn *lua.LFunction
	ch store.Change
}

// New creates an engine for s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		group:   event.NewGroup(s),
		subs:    make(map[string]event.Subscription),
		out:     os.Stdout,
		logger:  logging.Null(),
		timeout: DefaultTimeout,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("script")

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	e.L = L
	e.installSandbox()
	e.installStore()
	return e
}

func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// installSandbox removes file loading, restricts require to preloaded
// modules and sends print to the engine's output.
func (e *Engine) installSandbox() {
	L := e.L
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
		pkg.RawSetString("path", lua.LString(""))
		pkg.RawSetString("cpath", lua.LString(""))
		if loaders, ok := L.GetField(pkg, "loaders").(*lua.LTable); ok {
			for i := loaders.Len(); i > 1; i-- {
				loaders.Remove(i)
			}
		}
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		fmt.Fprintln(e.out, strings.Join(parts, "\t"))
		return 0
	}))
}

// Run executes code. Callbacks queued while it runs are delivered before
// it returns.
func (e *Engine) Run(ctx context.Context, code string) error {
	return e.exec(ctx, func(L *lua.LState) error { return L.DoString(code) })
}

// RunFile executes the script at path.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return e.exec(ctx, func(L *lua.LState) error {
		fn, err := L.Load(strings.NewReader(string(data)), path)
		if err != nil {
			return err
		}
		L.Push(fn)
		return L.PCall(0, lua.MultRet, nil)
	})
}

func (e *Engine) exec(ctx context.Context, fn func(*lua.LState) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	err := e.protect(func() error { return fn(e.L) })
	e.drain()
	if err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Serve delivers callbacks for notifications caused outside Run, such as
// file reloads, until ctx is done or the engine is closed.
func (e *Engine) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
		}

		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return ErrEngineClosed
		}
		cctx, cancel := e.withTimeout(ctx)
		e.L.SetContext(cctx)
		e.drain()
		e.L.RemoveContext()
		cancel()
		e.mu.Unlock()
	}
}

// enqueue is the store handler side of a Lua subscription. It may run on
// any goroutine.
func (e *Engine) enqueue(fn *lua.LFunction, ch store.Change) {
	e.qmu.Lock()
	e.queue = append(e.queue, call{fn: fn, ch: ch})
	e.qmu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// drain runs queued callbacks in order. The caller holds e.mu. Nested
// drains, from callbacks writing to the store, return at once and leave
// their work to the outer loop.
func (e *Engine) drain() {
	e.qmu.Lock()
	if e.draining {
		e.qmu.Unlock()
		return
	}
	e.draining = true
	defer func() {
		e.qmu.Lock()
		e.draining = false
		e.qmu.Unlock()
	}()

	for len(e.queue) > 0 {
		c := e.queue[0]
		e.queue[0] = call{}
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		err := e.protect(func() error {
			return e.L.CallByParam(lua.P{Fn: c.fn, NRet: 0, Protect: true},
				lua.LString(c.ch.Path), toLua(e.L, c.ch.Value))
		})
		if err != nil {
			e.logger.WithField("topic", c.ch.Path).Error("callback failed: %v", err)
		}

		e.qmu.Lock()
	}
	e.qmu.Unlock()
}

// Pending returns the number of queued callbacks.
func (e *Engine) Pending() int {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	return len(e.queue)
}

// Close releases the engine's subscriptions and the Lua state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.group.Close()
	e.L.Close()
	return nil
}
