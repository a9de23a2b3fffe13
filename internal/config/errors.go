package config

import "fmt"

// ConfigError reports malformed, ambiguous, or incomplete configuration.
// It is fatal: the application surfaces it before any pipeline phase runs.
type ConfigError struct {
	msg string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return e.msg
}

// newErrorf builds a ConfigError from a format string.
func newErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}
