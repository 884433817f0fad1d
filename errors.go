package mdmcp

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports a missing credential or a malformed connection
// target. It is not retryable without operator intervention.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// QueryTimeoutError reports that the watchdog interrupted a query.
// Retrying with a smaller or simpler query may succeed.
type QueryTimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("%s: query execution timed out after %s", e.Op, formatTimeout(e.Timeout))
}

// QueryExecutionError reports any other backend failure (syntax error,
// missing table, type error). Message is the backend's diagnostic text.
type QueryExecutionError struct {
	Op      string
	Message string
	// Hint is guidance from matching error_prompts, if any.
	Hint string
}

func (e *QueryExecutionError) Error() string {
	msg := fmt.Sprintf("%s: error executing query: %s", e.Op, e.Message)
	if e.Hint != "" {
		msg += "\n\n" + e.Hint
	}
	return msg
}

// interruptError is produced by the executor when its watchdog fired.
// It carries the cause for logging; normalizeError drops it.
type interruptError struct {
	timeout time.Duration
	err     error
}

func (e *interruptError) Error() string {
	return fmt.Sprintf("query interrupted after %s: %v", e.timeout, e.err)
}

func (e *interruptError) Unwrap() error { return e.err }

// normalizeError maps any pipeline failure to one of the three public error
// types. The returned error never wraps the original cause.
func normalizeError(op string, err error) error {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return &ConfigurationError{Message: cfgErr.Message}
	}
	var intr *interruptError
	if errors.As(err, &intr) {
		return &QueryTimeoutError{Op: op, Timeout: intr.timeout}
	}
	var timeoutErr *QueryTimeoutError
	if errors.As(err, &timeoutErr) {
		return &QueryTimeoutError{Op: op, Timeout: timeoutErr.Timeout}
	}
	var execErr *QueryExecutionError
	if errors.As(err, &execErr) {
		return &QueryExecutionError{Op: op, Message: execErr.Message, Hint: execErr.Hint}
	}
	return &QueryExecutionError{Op: op, Message: err.Error()}
}

// formatTimeout renders whole-second timeouts the way they are configured.
func formatTimeout(d time.Duration) string {
	if d%time.Second != 0 {
		return d.String()
	}
	secs := int64(d / time.Second)
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}
