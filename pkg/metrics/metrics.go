// Package metrics records challenge execution statistics and
// renders them in Prometheus text exposition format.
package metrics

import (
	"sync"
	"time"
)

// Recorder is the interface the orchestrator uses to record
// execution metrics.
type Recorder interface {
	// RecordExecution records one challenge run.
	RecordExecution(
		level int, status string, duration time.Duration,
	)

	// IncrementRunTotal increments the total run counter
	// (one per sequence or single-challenge start).
	IncrementRunTotal()

	// SetActiveLevel records which level is currently
	// executing, 0 when idle.
	SetActiveLevel(level int)
}

// NoopRecorder discards all metrics. Useful in tests and when
// metrics collection is disabled.
type NoopRecorder struct{}

func (NoopRecorder) RecordExecution(int, string, time.Duration) {}
func (NoopRecorder) IncrementRunTotal()                         {}
func (NoopRecorder) SetActiveLevel(int)                         {}

// levelStats aggregates per-level execution data.
type levelStats struct {
	byStatus      map[string]int
	totalDuration time.Duration
	runs          int
}

// Collector is an in-memory Recorder safe for concurrent use.
type Collector struct {
	mu          sync.RWMutex
	levels      map[int]*levelStats
	runTotal    int
	activeLevel int
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{levels: make(map[int]*levelStats)}
}

// RecordExecution records one challenge run.
func (c *Collector) RecordExecution(
	level int,
	status string,
	duration time.Duration,
) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ls, ok := c.levels[level]
	if !ok {
		ls = &levelStats{byStatus: make(map[string]int)}
		c.levels[level] = ls
	}
	ls.byStatus[status]++
	ls.totalDuration += duration
	ls.runs++
}

// IncrementRunTotal increments the total run counter.
func (c *Collector) IncrementRunTotal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runTotal++
}

// SetActiveLevel records the currently executing level.
func (c *Collector) SetActiveLevel(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeLevel = level
}

// ExecutionCount returns the run count for a level+status
// combination.
func (c *Collector) ExecutionCount(
	level int, status string,
) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ls, ok := c.levels[level]
	if !ok {
		return 0
	}
	return ls.byStatus[status]
}

// RunTotal returns the total number of starts recorded.
func (c *Collector) RunTotal() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runTotal
}

// ActiveLevel returns the currently executing level, 0 when
// idle.
func (c *Collector) ActiveLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeLevel
}

// AverageDuration returns the mean run duration for a level,
// zero when the level has never run.
func (c *Collector) AverageDuration(
	level int,
) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ls, ok := c.levels[level]
	if !ok || ls.runs == 0 {
		return 0
	}
	return ls.totalDuration / time.Duration(ls.runs)
}
