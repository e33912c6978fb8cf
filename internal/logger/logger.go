// Package logger provides verbose logging for sercha-rec.
// When verbose mode is enabled via the --verbose flag, debug messages
// are written to stderr to help users understand the retrieval pipeline.
// Errors are always written.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	base              = newHandlerLogger(os.Stderr)
)

// newHandlerLogger builds a text logger without timestamps so CLI output stays readable.
func newHandlerLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newHandlerLogger(w)
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Info logs an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn logs a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error logs an error message regardless of verbose mode.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

// Log writes a structured record with key/value attributes.
// Records below slog.LevelError are only written in verbose mode.
func Log(level slog.Level, msg string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose && level < slog.LevelError {
		return
	}
	base.Log(context.Background(), level, msg, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func logf(level slog.Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose && level < slog.LevelError {
		return
	}
	base.Log(context.Background(), level, fmt.Sprintf(format, args...))
}
