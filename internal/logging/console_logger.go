package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// ConsoleLogger writes leveled log lines to stderr through a tint handler.
// Safe for concurrent use by multiple goroutines.
type ConsoleLogger struct {
	logger *slog.Logger
}

// NewConsoleLogger creates a ConsoleLogger writing to stderr.
// If verbose is true, Verbose() calls will produce output.
// If verbose is false, Verbose() calls are no-ops.
// Colors are used only when stderr is a terminal.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	noColor := !term.IsTerminal(int(os.Stderr.Fd()))
	return newConsoleLogger(os.Stderr, verbose, noColor)
}

// NewConsoleLoggerWithWriter creates a ConsoleLogger writing uncolored lines to w.
func NewConsoleLoggerWithWriter(w io.Writer, verbose bool) *ConsoleLogger {
	return newConsoleLogger(w, verbose, true)
}

func newConsoleLogger(w io.Writer, verbose, noColor bool) *ConsoleLogger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:       level,
		NoColor:     noColor,
		ReplaceAttr: dropTime,
	})
	return &ConsoleLogger{logger: slog.New(handler)}
}

// dropTime removes the timestamp; CLI output is read by people, not collectors.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.Attr{}
	}
	return a
}

// Slog returns the underlying structured logger.
func (l *ConsoleLogger) Slog() *slog.Logger {
	return l.logger
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	l.log(slog.LevelDebug, format, args...)
}

// Info logs informational messages about normal operations.
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, format, args...)
}

// Warn logs recovered conditions, such as a query about to be retried.
func (l *ConsoleLogger) Warn(format string, args ...interface{}) {
	l.log(slog.LevelWarn, format, args...)
}

// Error logs error messages.
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, format, args...)
}

func (l *ConsoleLogger) log(level slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.logger.Log(ctx, level, msg)
}
