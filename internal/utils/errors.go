package utils

import "fmt"

// ConfigError represents a fatal configuration problem detected at startup,
// before any fetching happens.
type ConfigError struct {
	Message string
	Err     error
}

// Error returns the error message string.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the wrapped error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError wrapping an underlying cause.
func NewConfigError(message string, err error) error {
	return &ConfigError{Message: message, Err: err}
}

// NewConfigErrorf creates a new ConfigError with a formatted message.
func NewConfigErrorf(format string, args ...interface{}) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// FetchError represents a per-source network or parse failure. It is logged
// and isolated; the failing source contributes zero listings to the run.
type FetchError struct {
	Source string
	Err    error
}

// Error returns the error message string.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for source %s: %v", e.Source, e.Err)
}

// Unwrap returns the wrapped error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError for the given source.
func NewFetchError(source string, err error) error {
	return &FetchError{Source: source, Err: err}
}

// PersistenceError represents a database failure during upsert or aggregate
// recomputation. It aborts the current source batch but not the whole run.
type PersistenceError struct {
	Op  string
	Err error
}

// Error returns the error message string.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError for the given operation.
func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
