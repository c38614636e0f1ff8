package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "k", Value: "v"},
		StringField("k", "v"))
	assert.Equal(t, Field{Key: "n", Value: 3},
		IntField("n", 3))
	assert.Equal(t, Field{Key: "ok", Value: true},
		BoolField("ok", true))

	f := ErrorField(errors.New("boom"))
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "boom", f.Value)

	f = ErrorField(nil)
	assert.Equal(t, "<nil>", f.Value)
}

func TestConsoleLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(false)
	l.SetOutput(&buf)

	l.Info("challenge started",
		IntField("level", 3))
	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "challenge started")
	assert.Contains(t, out, "level=3")

	// Debug is suppressed unless verbose.
	buf.Reset()
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	verbose := NewConsoleLogger(true)
	verbose.SetOutput(&buf)
	verbose.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestConsoleLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewConsoleLogger(false)
	base.SetOutput(&buf)

	child := base.WithFields(StringField("run_id", "r1"))
	child.Info("hello")
	assert.Contains(t, buf.String(), "run_id=r1")

	// The parent is unaffected.
	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "run_id")
}

func TestJSONLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "run.jsonl")

	l, err := NewJSONLogger(JSONLoggerConfig{
		OutputPath: path,
		Fields:     map[string]any{"app": "autochallenge"},
	})
	require.NoError(t, err)

	l.Info("sequence started", IntField("start", 1))
	l.Error("sequence failed", IntField("level", 2))
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e LogEntry
		require.NoError(t,
			json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)

	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "sequence started",
		entries[0].Message)
	assert.Equal(t, "autochallenge",
		entries[0].Fields["app"])
	assert.EqualValues(t, 1, entries[0].Fields["start"])
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.NotEmpty(t, entries[0].Timestamp)
}

func TestJSONLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewJSONLogger(JSONLoggerConfig{
		Level: LevelWarn,
	})
	require.NoError(t, err)
	l.SetOutput(&buf)

	l.Debug("nope")
	l.Info("nope")
	l.Warn("yes")
	l.Error("yes")

	lines := strings.Count(
		strings.TrimSpace(buf.String()), "\n",
	) + 1
	assert.Equal(t, 2, lines)
}

func TestJSONLoggerDropsAfterClose(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewJSONLogger(JSONLoggerConfig{})
	require.NoError(t, err)
	l.SetOutput(&buf)

	require.NoError(t, l.Close())
	l.Info("too late")
	assert.Empty(t, buf.String())

	// Double close is fine.
	assert.NoError(t, l.Close())
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	la := NewConsoleLogger(false)
	la.SetOutput(&a)
	lb := NewConsoleLogger(false)
	lb.SetOutput(&b)

	m := NewMultiLogger(la, lb)
	m.Info("broadcast")

	assert.Contains(t, a.String(), "broadcast")
	assert.Contains(t, b.String(), "broadcast")
	assert.NoError(t, m.Close())
}

func TestNullLogger(t *testing.T) {
	l := NewNullLogger()
	l.Info("ignored")
	l.Debug("ignored")
	assert.Same(t, Logger(l), l.WithFields(
		StringField("k", "v"),
	))
	assert.NoError(t, l.Close())
}
