package config

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound indicates the settings file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")

	// ErrValidationFailed indicates a setting holds an unusable value.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError reports the setting that failed validation.
type ValidationError struct {
	// Field is the dotted setting name, e.g. "bus.queue_size".
	Field string
	// Value is the rejected value.
	Value any
	// Reason describes the constraint.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s = %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// EnvError reports an environment variable that could not be parsed.
type EnvError struct {
	Var   string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("parsing %s=%q: %v", e.Var, e.Value, e.Err)
}

func (e *EnvError) Unwrap() error {
	return e.Err
}
