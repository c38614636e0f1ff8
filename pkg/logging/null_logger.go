package logging

// NullLogger discards all log output. Useful in tests and as a
// safe default when no logger is configured.
type NullLogger struct{}

// NewNullLogger creates a logger that discards everything.
func NewNullLogger() *NullLogger { return &NullLogger{} }

// Info discards the message.
func (*NullLogger) Info(string, ...Field) {}

// Warn discards the message.
func (*NullLogger) Warn(string, ...Field) {}

// Error discards the message.
func (*NullLogger) Error(string, ...Field) {}

// Debug discards the message.
func (*NullLogger) Debug(string, ...Field) {}

// WithFields returns the same discarding logger.
func (n *NullLogger) WithFields(...Field) Logger { return n }

// Close is a no-op.
func (*NullLogger) Close() error { return nil }
