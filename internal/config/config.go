package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/proxystore/internal/loader"
	"github.com/dshills/proxystore/internal/logging"
	"github.com/dshills/proxystore/internal/snapshot"
)

// Config is the full storectl configuration. Mutate a copy returned by
// Default or Load; Config has no internal synchronization.
type Config struct {
	Log    LogConfig    `toml:"log"`
	Store  StoreConfig  `toml:"store"`
	Bus    BusConfig    `toml:"bus"`
	Watch  WatchConfig  `toml:"watch"`
	Output OutputConfig `toml:"output"`
	Script ScriptConfig `toml:"script"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// StoreConfig configures the store.
type StoreConfig struct {
	// MaxCascade bounds notifications per drain cycle. Zero is unbounded.
	MaxCascade int `toml:"max_cascade"`
}

// BusConfig configures asynchronous notification delivery.
type BusConfig struct {
	// AsyncEvents prints subscribed notifications from the worker pool
	// instead of the writing goroutine. Lines of one -events pattern keep
	// write order; lines of different patterns may interleave.
	AsyncEvents  bool `toml:"async_events"`
	AsyncWorkers int  `toml:"async_workers"`
	QueueSize    int  `toml:"queue_size"`
}

// WatchConfig configures live reload.
type WatchConfig struct {
	// Debounce coalesces bursts of file events.
	Debounce Duration `toml:"debounce"`
}

// OutputConfig configures how snapshots and events are printed.
type OutputConfig struct {
	// Format is json, pretty or msgpack.
	Format string `toml:"format"`
	// Color is auto, always or never.
	Color string `toml:"color"`
}

// ScriptConfig configures the Lua engine.
type ScriptConfig struct {
	Timeout Duration `toml:"timeout"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText accepts Go duration syntax or a bare number of
// milliseconds.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info"},
		Bus:    BusConfig{AsyncWorkers: 4, QueueSize: 1024},
		Watch:  WatchConfig{Debounce: Duration{100 * time.Millisecond}},
		Output: OutputConfig{Format: "pretty", Color: "auto"},
		Script: ScriptConfig{Timeout: Duration{5 * time.Second}},
	}
}

// Load reads a TOML settings file over the defaults.
func Load(path string) (Config, error) {
	return LoadFS(loader.DefaultFS(), path)
}

// LoadFS is Load reading from fsys. Unknown keys are errors.
func LoadFS(fsys loader.FileSystem, path string) (Config, error) {
	cfg := Default()

	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		perr := &loader.ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return Default(), perr
	}
	return cfg, nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, field string, value any, reason string) {
		if !ok {
			errs = append(errs, &ValidationError{Field: field, Value: value, Reason: reason})
		}
	}

	_, levelErr := logging.ParseLevelStrict(c.Log.Level)
	check(levelErr == nil, "log.level", c.Log.Level, "want debug, info, warn or error")
	check(c.Store.MaxCascade >= 0, "store.max_cascade", c.Store.MaxCascade, "must not be negative")
	check(c.Bus.AsyncWorkers > 0, "bus.async_workers", c.Bus.AsyncWorkers, "must be positive")
	check(c.Bus.QueueSize > 0, "bus.queue_size", c.Bus.QueueSize, "must be positive")
	check(c.Watch.Debounce.Duration >= 0, "watch.debounce", c.Watch.Debounce, "must not be negative")
	check(c.Script.Timeout.Duration >= 0, "script.timeout", c.Script.Timeout, "must not be negative")

	_, formatErr := snapshot.ParseFormat(c.Output.Format)
	check(formatErr == nil, "output.format", c.Output.Format, "want json, pretty or msgpack")
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		check(false, "output.color", c.Output.Color, "want auto, always or never")
	}

	return errors.Join(errs...)
}

// String renders the configuration as TOML.
func (c Config) String() string {
	data, err := toml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(data)
}
