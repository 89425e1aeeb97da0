// Package logging provides concrete implementations of the dbretry.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: slog with a tint handler, one line per message on stderr
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
