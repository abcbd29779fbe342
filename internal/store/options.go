package store

import (
	"github.com/dshills/proxystore/internal/event"
	"github.com/dshills/proxystore/internal/logging"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	logger     *logging.Logger
	maxCascade int
	busOptions []event.BusOption
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxCascade bounds the notifications delivered by one drain cycle,
// including those caused by handlers writing back into the store. When the
// bound is hit the rest are dropped and Err reports ErrCascadeLimit. Zero,
// the default, means unbounded.
func WithMaxCascade(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxCascade = n
		}
	}
}

// WithBusOptions passes options to the underlying event bus.
func WithBusOptions(opts ...event.BusOption) Option {
	return func(o *options) {
		o.busOptions = append(o.busOptions, opts...)
	}
}
