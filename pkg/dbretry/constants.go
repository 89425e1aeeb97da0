package dbretry

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or rules
	ExitConnectionError = 11 // Failed to connect to database
	ExitNoMatch         = 12 // Message matched no retry rule
	ExitExecutionFailed = 13 // SQL execution failed after retries
)

const (
	// DefaultConnectInitialDelay is the first delay when retrying connection establishment.
	DefaultConnectInitialDelay = 100 * time.Millisecond

	// DefaultConnectMaxDelay caps the delay between connection attempts.
	DefaultConnectMaxDelay = 1 * time.Minute

	// DefaultConnectMaxAttempts is the number of connection retries after the first attempt.
	DefaultConnectMaxAttempts = 3

	// DefaultTimeout bounds a single CLI invocation including all retries.
	DefaultTimeout = 5 * time.Minute
)

// DefaultSchedule returns the default retry delays: three retries after 1s, 2s and 4s.
// A fresh slice is returned on every call.
func DefaultSchedule() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}
