// Package execlog provides a bounded, append-only record of
// challenge-level events for historical inspection. It is
// independent of the live event bus: different retention,
// different consumers.
package execlog

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries retained when no
// explicit capacity is configured.
const DefaultCapacity = 1000

// Entry is one record in the execution log.
type Entry struct {
	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp"`

	// Level is the challenge level the entry concerns, or 0
	// for system-wide entries.
	Level int `json:"level,omitempty"`

	// EventType names the transition that produced the entry.
	EventType string `json:"event_type"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Log is a FIFO-bounded, append-only store of entries. Once
// the capacity is exceeded the oldest entries are evicted.
// Safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	start   int
	count   int
}

// NewLog creates a Log holding up to capacity entries. A
// non-positive capacity falls back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]Entry, capacity)}
}

// Append records an entry, evicting the oldest if full.
func (l *Log) Append(
	level int,
	eventType, message string,
) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		Timestamp: time.Now(),
		Level:     level,
		EventType: eventType,
		Message:   message,
	}

	size := len(l.entries)
	if l.count < size {
		l.entries[(l.start+l.count)%size] = e
		l.count++
	} else {
		l.entries[l.start] = e
		l.start = (l.start + 1) % size
	}
}

// Recent returns up to n entries in insertion order, oldest of
// the returned window first. A non-positive n returns all
// retained entries.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]Entry, 0, n)
	for i := l.count - n; i < l.count; i++ {
		out = append(
			out, l.entries[(l.start+i)%len(l.entries)],
		)
	}
	return out
}

// RecentForLevel returns up to n entries for a single level in
// insertion order.
func (l *Log) RecentForLevel(level, n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		n = l.count
	}
	// Walk backwards collecting matches, then reverse.
	matched := make([]Entry, 0, n)
	for i := l.count - 1; i >= 0 && len(matched) < n; i-- {
		e := l.entries[(l.start+i)%len(l.entries)]
		if e.Level == level {
			matched = append(matched, e)
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}
