package dbretry

import (
	"errors"
	"strings"
)

// Sentinel errors for failures produced by dbretry itself.
// Errors returned by a unit of work are never wrapped in these; the engine
// hands them back unchanged.
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrExecutionFailed indicates SQL execution failed.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrNoResource indicates a reconnect was requested but no resource was configured.
	ErrNoResource = errors.New("no connection resource configured")

	// ErrNoMatch indicates an error message matched no rule.
	ErrNoMatch = errors.New("no matching rule")

	// ErrUnsupportedDriver indicates the requested database driver is not supported.
	ErrUnsupportedDriver = errors.New("unsupported driver")

	// ErrSessionClosed indicates the session has been discarded or closed.
	ErrSessionClosed = errors.New("session closed")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedDriver):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrNoMatch):
		return ExitNoMatch
	case errors.Is(err, ErrExecutionFailed):
		return ExitExecutionFailed
	}

	errStr := err.Error()
	if isUsageError(errStr) {
		return ExitUsageError
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

// isUsageError recognises argument and flag errors produced by cobra.
func isUsageError(msg string) bool {
	for _, prefix := range []string{"missing required argument", "accepts ", "requires at least", "unknown flag", "unknown shorthand flag", "unknown command", "invalid argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
