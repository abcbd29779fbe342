package event

import "time"

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	asyncQueueSize   int
	asyncWorkerCount int
	handlerTimeout   time.Duration
	panicHandler     PanicHandler
	errorHandler     ErrorHandler
}

func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize:   1024,
		asyncWorkerCount: 4,
	}
}

// WithAsyncQueueSize sets the async queue capacity.
func WithAsyncQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithAsyncWorkerCount sets the number of async workers.
func WithAsyncWorkerCount(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkerCount = count
		}
	}
}

// WithHandlerTimeout bounds each handler invocation. Zero disables it.
func WithHandlerTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		c.handlerTimeout = timeout
	}
}

// WithBusPanicHandler is called for every recovered handler panic.
func WithBusPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}

// WithErrorHandler is called for every handler that returns an error.
func WithErrorHandler(h ErrorHandler) BusOption {
	return func(c *busConfig) {
		c.errorHandler = h
	}
}
