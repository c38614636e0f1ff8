// Package challenge defines the unit of work executed by the
// automation system: a named, levelled sequence of steps with
// its own lifecycle state, progress, and cumulative counters.
package challenge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status represents the lifecycle state of a challenge.
type Status string

// Lifecycle states. A challenge moves NotStarted -> Running and
// terminates in Completed, Failed, or Error. Error denotes a
// fault (a step panicked) as opposed to a step reporting
// failure; both count as an unsuccessful run.
const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// StepFunc performs one step of a challenge. A non-nil error
// marks the step as failed and stops the run.
type StepFunc func(ctx context.Context) error

// Step pairs a display label with the function that performs
// it. The step list is fixed once a run starts.
type Step struct {
	// Label describes the step for logs and status displays.
	Label string

	// Run performs the step.
	Run StepFunc
}

// Challenge is a single unit of ordered automation work. All
// mutable fields are guarded by an internal mutex: the runner
// is the only writer while a run is in flight, and arbitrary
// goroutines may read snapshots concurrently.
type Challenge struct {
	mu sync.RWMutex

	level         int
	name          string
	description   string
	prerequisites []int
	steps         []Step
	hooks         Hooks

	status        Status
	progress      float64
	currentStep   int
	successCount  int
	failureCount  int
	lastRun       time.Time
	executionTime time.Duration
	lastError     string
}

// Option configures a Challenge at construction time.
type Option func(*Challenge)

// WithPrerequisites sets the levels that must be completed
// before this challenge may run.
func WithPrerequisites(levels ...int) Option {
	return func(c *Challenge) {
		c.prerequisites = append([]int(nil), levels...)
	}
}

// WithHooks sets the setup/cleanup capability contract invoked
// around the step sequence.
func WithHooks(h Hooks) Option {
	return func(c *Challenge) {
		c.hooks = h
	}
}

// New creates a Challenge. The level must be a positive
// integer; it is the challenge's identity for the lifetime of
// the process.
func New(
	level int,
	name, description string,
	steps []Step,
	opts ...Option,
) (*Challenge, error) {
	if level <= 0 {
		return nil, fmt.Errorf(
			"challenge level must be positive, got %d", level,
		)
	}
	if name == "" {
		return nil, fmt.Errorf(
			"challenge %d: name must not be empty", level,
		)
	}

	c := &Challenge{
		level:       level,
		name:        name,
		description: description,
		steps:       append([]Step(nil), steps...),
		hooks:       NopHooks{},
		status:      StatusNotStarted,
	}
	for _, opt := range opts {
		opt(c)
	}
	sort.Ints(c.prerequisites)
	return c, nil
}

// Level returns the challenge's integer identity.
func (c *Challenge) Level() int { return c.level }

// Name returns the display name.
func (c *Challenge) Name() string { return c.name }

// Description returns the display description.
func (c *Challenge) Description() string {
	return c.description
}

// Prerequisites returns a copy of the prerequisite levels in
// ascending order.
func (c *Challenge) Prerequisites() []int {
	return append([]int(nil), c.prerequisites...)
}

// Steps returns a copy of the step list. The runner takes this
// snapshot once at the start of a run so that external
// mutation cannot change the sequence mid-run.
func (c *Challenge) Steps() []Step {
	return append([]Step(nil), c.steps...)
}

// Hooks returns the setup/cleanup contract for this challenge.
func (c *Challenge) Hooks() Hooks { return c.hooks }

// Status returns the current lifecycle state.
func (c *Challenge) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// BeginRun transitions the challenge to Running and clears the
// per-run fields. Called by the runner before the first step.
func (c *Challenge) BeginRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusRunning
	c.progress = 0
	c.currentStep = 0
	c.lastError = ""
}

// EnterStep records that the 1-based step index is now in
// progress.
func (c *Challenge) EnterStep(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentStep = index
}

// MarkStep records that step done of total just finished
// successfully. Progress is exactly done/total.
func (c *Challenge) MarkStep(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentStep = done
	if total > 0 {
		c.progress = float64(done) / float64(total)
	}
}

// FinishRun records the terminal state of a run: final status,
// error message, timing, and the cumulative counters. started
// is when the run began; lastRun and executionTime are always
// recorded regardless of outcome.
func (c *Challenge) FinishRun(
	status Status,
	errMsg string,
	started time.Time,
) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
	c.lastError = errMsg
	c.lastRun = time.Now()
	c.executionTime = c.lastRun.Sub(started)

	if status == StatusCompleted {
		c.successCount++
		c.progress = 1.0
	} else {
		c.failureCount++
	}
}

// Reset returns the challenge to NotStarted, clearing progress,
// current step, and last error. Cumulative success/failure
// counters and last-run timing are preserved.
func (c *Challenge) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusNotStarted
	c.progress = 0
	c.currentStep = 0
	c.lastError = ""
}

// Snapshot is an immutable copy of a challenge's observable
// state, safe to hand to other goroutines.
type Snapshot struct {
	Level         int           `json:"level"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Prerequisites []int         `json:"prerequisites"`
	TotalSteps    int           `json:"total_steps"`
	Status        Status        `json:"status"`
	Progress      float64       `json:"progress"`
	CurrentStep   int           `json:"current_step"`
	SuccessCount  int           `json:"success_count"`
	FailureCount  int           `json:"failure_count"`
	LastRun       *time.Time    `json:"last_run,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	LastError     string        `json:"last_error,omitempty"`
}

// Snapshot returns a consistent copy of the challenge state.
func (c *Challenge) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Level:         c.level,
		Name:          c.name,
		Description:   c.description,
		Prerequisites: append([]int(nil), c.prerequisites...),
		TotalSteps:    len(c.steps),
		Status:        c.status,
		Progress:      c.progress,
		CurrentStep:   c.currentStep,
		SuccessCount:  c.successCount,
		FailureCount:  c.failureCount,
		ExecutionTime: c.executionTime,
		LastError:     c.lastError,
	}
	if !c.lastRun.IsZero() {
		t := c.lastRun
		s.LastRun = &t
	}
	return s
}
