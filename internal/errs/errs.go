// Package errs provides the error kinds shared across the Gateway API.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotSupported indicates that a provider lacks the requested capability,
// e.g. snapshot or historical data.
var ErrNotSupported = errors.New("not supported by provider")

// AuthError indicates that a broker rejected login, validation or token
// exchange, or that required credentials are missing.
type AuthError struct {
	Provider string
	Reason   string
	cause    error
}

// NewAuthError constructs an AuthError for the given provider.
func NewAuthError(provider, reason string, cause error) *AuthError {
	return &AuthError{Provider: provider, Reason: reason, cause: cause}
}

func (e *AuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s auth failed: %s: %v", e.Provider, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s auth failed: %s", e.Provider, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.cause }

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ConfigError indicates invalid or missing configuration, e.g. an unknown
// provider name.
type ConfigError struct {
	Reason string
}

// NewConfigError constructs a ConfigError.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string { return "config error: " + e.Reason }

// IsConfigError reports whether err is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
