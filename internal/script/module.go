package script

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/store"
)

func (e *Engine) installStore() {
	mod := e.L.SetFuncs(e.L.NewTable(), map[string]lua.LGFunction{
		"get":     e.luaGet,
		"lookup":  e.luaLookup,
		"set":     e.luaSet,
		"replace": e.luaReplace,
		"default": e.luaDefault,
		"len":     e.luaLen,
		"on":      e.luaOn,
		"once":    e.luaOnce,
		"off":     e.luaOff,
	})
	e.L.SetGlobal("store", mod)
	e.L.PreloadModule("store", func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})
}

// value converts a store read into a Lua value. Nodes are passed as
// snapshots.
func (e *Engine) value(v any) lua.LValue {
	if n, ok := v.(*store.Node); ok {
		v = n.Snapshot()
	}
	return toLua(e.L, v)
}

// raise turns a Go error into a Lua error. It does not return.
func raise(L *lua.LState, err error) int {
	L.RaiseError("%s", err.Error())
	return 0
}

func (e *Engine) luaGet(L *lua.LState) int {
	path := L.OptString(1, "")
	L.Push(e.value(e.store.Get(path)))
	return 1
}

func (e *Engine) luaLookup(L *lua.LState) int {
	path := L.OptString(1, "")
	v, ok := e.store.Lookup(path)
	L.Push(e.value(v))
	L.Push(lua.LBool(ok))
	return 2
}

func (e *Engine) luaSet(L *lua.LState) int {
	path := L.CheckString(1)
	value := toGo(L.Get(2))
	if err := e.store.Put(path, value); err != nil {
		return raise(L, err)
	}
	e.drain()
	return 0
}

func (e *Engine) luaReplace(L *lua.LState) int {
	value := toGo(L.CheckAny(1))
	if _, err := e.store.Set(value); err != nil {
		return raise(L, err)
	}
	e.drain()
	return 0
}

func (e *Engine) luaDefault(L *lua.LState) int {
	value := toGo(L.CheckAny(1))
	node := e.store.Root().Node(store.SplitPath(L.OptString(2, ""))...)
	if node == nil {
		L.ArgError(2, "path does not address a container")
		return 0
	}
	if err := node.Default(value); err != nil {
		return raise(L, err)
	}
	e.drain()
	return 0
}

func (e *Engine) luaLen(L *lua.LState) int {
	node := e.store.Root().Node(store.SplitPath(L.OptString(1, ""))...)
	if node == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(node.Len()))
	return 1
}

func (e *Engine) luaOn(L *lua.LState) int {
	return e.subscribe(L, e.store.On)
}

func (e *Engine) luaOnce(L *lua.LState) int {
	return e.subscribe(L, e.store.One)
}

type subscribeFunc func(string, store.Handler, ...event.SubscriptionOption) (event.Subscription, error)

func (e *Engine) subscribe(L *lua.LState, on subscribeFunc) int {
	pattern := L.CheckString(1)
	fn := L.CheckFunction(2)
	lazy := L.OptBool(3, true)

	sub, err := e.group.Track(on(pattern, func(_ context.Context, ch store.Change) error {
		e.enqueue(fn, ch)
		return nil
	}, event.WithLazy(lazy)))
	if err != nil {
		return raise(L, err)
	}
	e.subs[sub.ID()] = sub
	e.drain()

	L.Push(lua.LString(sub.ID()))
	return 1
}

func (e *Engine) luaOff(L *lua.LState) int {
	id := L.CheckString(1)
	sub, ok := e.subs[id]
	if !ok {
		return raise(L, ErrUnknownSubscription)
	}
	delete(e.subs, id)
	_ = e.store.Off(sub)
	return 0
}
