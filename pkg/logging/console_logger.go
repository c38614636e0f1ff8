package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// ConsoleLogger provides colored console output.
type ConsoleLogger struct {
	mu      sync.Mutex
	output  io.Writer
	verbose bool
	fields  map[string]any
}

// NewConsoleLogger creates a console logger. When verbose is
// true, debug messages are emitted.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return &ConsoleLogger{
		output:  os.Stdout,
		verbose: verbose,
		fields:  make(map[string]any),
	}
}

func (c *ConsoleLogger) log(
	level LogLevel, color, msg string, fields ...Field,
) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := time.Now().Format("15:04:05")

	merged := make([]string, 0, len(c.fields)+len(fields))
	for k, v := range c.fields {
		merged = append(merged, fmt.Sprintf("%s=%v", k, v))
	}
	for _, f := range fields {
		merged = append(
			merged, fmt.Sprintf("%s=%v", f.Key, f.Value),
		)
	}

	var fieldStr string
	if len(merged) > 0 {
		fieldStr = " " + colorGray +
			fmt.Sprintf("{%s}", strings.Join(merged, ", ")) +
			colorReset
	}

	fmt.Fprintf(
		c.output, "%s%s%s [%s%-5s%s] %s%s\n",
		colorGray, ts, colorReset,
		color, level.String(), colorReset,
		msg, fieldStr,
	)
}

// Info logs an informational message.
func (c *ConsoleLogger) Info(msg string, fields ...Field) {
	c.log(LevelInfo, colorBlue, msg, fields...)
}

// Warn logs a warning message.
func (c *ConsoleLogger) Warn(msg string, fields ...Field) {
	c.log(LevelWarn, colorYellow, msg, fields...)
}

// Error logs an error message.
func (c *ConsoleLogger) Error(msg string, fields ...Field) {
	c.log(LevelError, colorRed, msg, fields...)
}

// Debug logs a debug message only if verbose is enabled.
func (c *ConsoleLogger) Debug(msg string, fields ...Field) {
	if c.verbose {
		c.log(LevelDebug, colorGray, msg, fields...)
	}
}

// WithFields returns a new Logger with additional default
// fields.
func (c *ConsoleLogger) WithFields(fields ...Field) Logger {
	newFields := make(map[string]any)
	c.mu.Lock()
	for k, v := range c.fields {
		newFields[k] = v
	}
	c.mu.Unlock()
	for _, f := range fields {
		newFields[f.Key] = f.Value
	}
	return &ConsoleLogger{
		output:  c.output,
		verbose: c.verbose,
		fields:  newFields,
	}
}

// Close is a no-op for console output.
func (c *ConsoleLogger) Close() error { return nil }

// SetOutput redirects log output, primarily for tests.
func (c *ConsoleLogger) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = w
}
