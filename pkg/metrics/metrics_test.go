package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordExecution(t *testing.T) {
	c := NewCollector()
	c.RecordExecution(1, "completed", 100*time.Millisecond)
	c.RecordExecution(1, "completed", 300*time.Millisecond)
	c.RecordExecution(1, "failed", 50*time.Millisecond)
	c.RecordExecution(2, "error", 10*time.Millisecond)

	assert.Equal(t, 2, c.ExecutionCount(1, "completed"))
	assert.Equal(t, 1, c.ExecutionCount(1, "failed"))
	assert.Equal(t, 1, c.ExecutionCount(2, "error"))
	assert.Zero(t, c.ExecutionCount(3, "completed"))

	assert.Equal(t,
		150*time.Millisecond, c.AverageDuration(1))
	assert.Zero(t, c.AverageDuration(9))
}

func TestCollectorRunTotalAndActiveLevel(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.RunTotal())
	assert.Zero(t, c.ActiveLevel())

	c.IncrementRunTotal()
	c.IncrementRunTotal()
	c.SetActiveLevel(3)

	assert.Equal(t, 2, c.RunTotal())
	assert.Equal(t, 3, c.ActiveLevel())

	c.SetActiveLevel(0)
	assert.Zero(t, c.ActiveLevel())
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(level int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.RecordExecution(
					level, "completed", time.Millisecond,
				)
				c.IncrementRunTotal()
			}
		}(g%2 + 1)
	}
	wg.Wait()

	total := c.ExecutionCount(1, "completed") +
		c.ExecutionCount(2, "completed")
	assert.Equal(t, 400, total)
	assert.Equal(t, 400, c.RunTotal())
}

func TestRenderPrometheus(t *testing.T) {
	c := NewCollector()
	c.IncrementRunTotal()
	c.SetActiveLevel(2)
	c.RecordExecution(2, "completed", 1500*time.Millisecond)
	c.RecordExecution(1, "failed", 200*time.Millisecond)

	out := c.RenderPrometheus()

	assert.Contains(t, out,
		"# TYPE challenge_runs_total counter")
	assert.Contains(t, out, "challenge_runs_total 1")
	assert.Contains(t, out, "challenge_active_level 2")
	assert.Contains(t, out,
		`challenge_executions_total{level="2",status="completed"} 1`)
	assert.Contains(t, out,
		`challenge_executions_total{level="1",status="failed"} 1`)
	assert.Contains(t, out,
		`challenge_duration_seconds_total{level="2"} 1.5`)

	// Levels render in ascending order.
	idx1 := strings.Index(out, `level="1"`)
	idx2 := strings.Index(out, `level="2",`)
	assert.Less(t, idx1, idx2)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.RecordExecution(1, "completed", time.Second)
	r.IncrementRunTotal()
	r.SetActiveLevel(1)
}
