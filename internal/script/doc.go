// Package script runs Lua scripts against a store.
//
// Scripts see a "store" table (also loadable with require("store")):
//
//	store.get(path)              -- value at path, vivifying; containers as tables
//	store.lookup(path)           -- value, found; never vivifies
//	store.set(path, value)       -- write through the normal write path
//	store.replace(value)         -- replace the whole tree
//	store.default(value [, path])-- fill gaps without overwriting
//	store.len(path)              -- number of entries of the node at path
//	store.on(pattern, fn [, lazy])  -- subscribe; fn(path, value); returns an id
//	store.once(pattern, fn [, lazy])
//	store.off(id)
//
// Paths are the store's dotted paths, so sequence entries are 0-based
// ("names.0.name") even though Lua tables built from sequences are 1-based.
//
// Only the base, table, string and math libraries are opened. dofile,
// loadfile, load and loadstring are removed and require only resolves
// preloaded modules.
//
// A LState is not safe for concurrent use. Notifications for Lua callbacks
// are queued and run on the goroutine that holds the engine: after every
// store call made from Lua, at the end of Run, and from Serve for
// notifications caused elsewhere.
package script
