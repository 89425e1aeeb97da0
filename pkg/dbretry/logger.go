package dbretry

// Warner is the only logging capability the retry engine needs.
type Warner interface {
	// Warn logs a condition that was recovered from or is about to be retried.
	Warn(format string, args ...interface{})
}

// Logger provides a pluggable logging interface for dbretry operations.
// Implementations must be safe for concurrent use by multiple goroutines.
type Logger interface {
	Warner

	// Verbose logs detailed diagnostic information.
	// Only logged when verbose mode is enabled.
	Verbose(format string, args ...interface{})

	// Info logs informational messages about normal operations.
	Info(format string, args ...interface{})

	// Error logs error messages.
	Error(format string, args ...interface{})
}
