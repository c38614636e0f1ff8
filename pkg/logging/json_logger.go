package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogEntry represents a single JSON log entry.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// JSONLoggerConfig configures the JSONLogger.
type JSONLoggerConfig struct {
	// OutputPath is the log file path. Empty means stdout.
	OutputPath string

	// Level is the minimum severity to emit.
	Level LogLevel

	// Fields are default fields attached to every entry.
	Fields map[string]any
}

// JSONLogger implements Logger with JSON Lines output.
type JSONLogger struct {
	mu     sync.Mutex
	output io.Writer
	level  LogLevel
	fields map[string]any
	closed bool
}

// NewJSONLogger creates a new JSON logger. If OutputPath is
// empty, entries are written to stdout.
func NewJSONLogger(
	config JSONLoggerConfig,
) (*JSONLogger, error) {
	logger := &JSONLogger{
		level:  config.Level,
		fields: config.Fields,
	}
	if logger.fields == nil {
		logger.fields = make(map[string]any)
	}

	if config.OutputPath != "" {
		dir := filepath.Dir(config.OutputPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf(
				"failed to create log directory: %w", err,
			)
		}
		file, err := os.OpenFile(
			config.OutputPath,
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to open log file: %w", err,
			)
		}
		logger.output = file
	} else {
		logger.output = os.Stdout
	}

	return logger, nil
}

func (j *JSONLogger) write(
	level LogLevel, msg string, fields ...Field,
) {
	if level < j.level {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if len(j.fields) > 0 || len(fields) > 0 {
		entry.Fields = make(
			map[string]any, len(j.fields)+len(fields),
		)
		for k, v := range j.fields {
			entry.Fields[k] = v
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(
			os.Stderr, "logging: marshal entry: %v\n", err,
		)
		return
	}
	j.output.Write(append(data, '\n'))
}

// Info logs an informational message.
func (j *JSONLogger) Info(msg string, fields ...Field) {
	j.write(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (j *JSONLogger) Warn(msg string, fields ...Field) {
	j.write(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (j *JSONLogger) Error(msg string, fields ...Field) {
	j.write(LevelError, msg, fields...)
}

// Debug logs a debug-level message.
func (j *JSONLogger) Debug(msg string, fields ...Field) {
	j.write(LevelDebug, msg, fields...)
}

// WithFields returns a Logger with additional default fields.
// The returned logger shares the underlying writer.
func (j *JSONLogger) WithFields(fields ...Field) Logger {
	j.mu.Lock()
	defer j.mu.Unlock()

	newFields := make(
		map[string]any, len(j.fields)+len(fields),
	)
	for k, v := range j.fields {
		newFields[k] = v
	}
	for _, f := range fields {
		newFields[f.Key] = f.Value
	}
	return &JSONLogger{
		output: j.output,
		level:  j.level,
		fields: newFields,
	}
}

// Close closes the underlying file, if any. Subsequent log
// calls are dropped.
func (j *JSONLogger) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if closer, ok := j.output.(io.Closer); ok {
		if closer != os.Stdout {
			return closer.Close()
		}
	}
	return nil
}

// SetOutput redirects log output, primarily for tests.
func (j *JSONLogger) SetOutput(w io.Writer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = w
}
