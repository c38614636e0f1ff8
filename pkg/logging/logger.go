// Package logging provides structured logging for the
// automation system with console, JSON, and multi-destination
// output. A Logger is always passed in explicitly; there is no
// package-level singleton.
package logging

// Logger defines the interface for structured logging.
type Logger interface {
	// Info logs an informational message.
	Info(msg string, fields ...Field)

	// Warn logs a warning message.
	Warn(msg string, fields ...Field)

	// Error logs an error message.
	Error(msg string, fields ...Field)

	// Debug logs a debug-level message.
	Debug(msg string, fields ...Field)

	// WithFields returns a Logger with additional default
	// fields attached to every subsequent log entry.
	WithFields(fields ...Field) Logger

	// Close flushes any buffers and releases resources.
	Close() error
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// LogLevel represents logging severity levels.
type LogLevel int

const (
	// LevelDebug is the most verbose level.
	LevelDebug LogLevel = iota
	// LevelInfo is the default level.
	LevelInfo
	// LevelWarn indicates potential issues.
	LevelWarn
	// LevelError indicates failures.
	LevelError
)

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
