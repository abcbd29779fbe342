package script

import "errors"

var (
	// ErrEngineClosed is returned when using a closed engine.
	ErrEngineClosed = errors.New("script engine is closed")

	// ErrUnknownSubscription is raised by store.off for an unknown id.
	ErrUnknownSubscription = errors.New("unknown subscription id")
)
