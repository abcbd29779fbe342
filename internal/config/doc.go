// Package config holds storectl settings.
//
// Settings are layered, lowest priority first:
//
//	built-in defaults  (Default)
//	TOML file          (Load)
//	environment        (ApplyEnv, PROXYSTORE_* variables)
//	command line flags (applied by cmd/storectl)
//
// A settings file looks like:
//
//	[log]
//	level = "debug"
//
//	[store]
//	max_cascade = 10000
//
//	[bus]
//	async_events = false
//	async_workers = 4
//	queue_size = 1024
//
//	[watch]
//	debounce = "200ms"
//
//	[output]
//	format = "pretty"
//	color = "auto"
//
//	[script]
//	timeout = "5s"
package config
