// Package runner drives a single challenge through its run:
// setup, the ordered step sequence, and cleanup, producing an
// explicit Outcome. Failures are contained here and translated
// into challenge status; nothing is thrown across the
// orchestrator boundary.
package runner

import (
	"context"
	"fmt"
	"time"

	"digital.vasic.automation/pkg/challenge"
	"digital.vasic.automation/pkg/logging"
)

// Runner executes challenges one at a time. It is stateless
// between runs; the single-active-run rule is enforced by the
// orchestrator, which is the only caller.
type Runner struct {
	logger    logging.Logger
	stepDelay time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for step-level messages.
func WithLogger(l logging.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithStepDelay inserts a pause between consecutive steps.
func WithStepDelay(d time.Duration) Option {
	return func(r *Runner) { r.stepDelay = d }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{logger: logging.NewNullLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the challenge: PreSetup, each step in order
// (fail-fast), then PostCleanup. Cleanup always runs and its
// errors are logged, never propagated; the primary outcome is
// never masked. lastRun and executionTime are recorded
// regardless of outcome.
func (r *Runner) Run(
	ctx context.Context,
	c *challenge.Challenge,
) challenge.Outcome {
	started := time.Now()

	// The step list is snapshotted up front: the run must not
	// observe a different sequence even if the challenge is
	// mutated externally.
	steps := c.Steps()
	total := len(steps)

	c.BeginRun()
	r.logger.Info("challenge run started",
		logging.IntField("level", c.Level()),
		logging.StringField("name", c.Name()),
		logging.IntField("total_steps", total),
	)

	if err := r.preSetup(ctx, c); err != nil {
		msg := fmt.Sprintf("pre-setup failed: %v", err)
		r.cleanup(ctx, c)
		c.FinishRun(challenge.StatusFailed, msg, started)
		r.logger.Error("challenge setup failed",
			logging.IntField("level", c.Level()),
			logging.ErrorField(err),
		)
		return challenge.Outcome{
			Level:    c.Level(),
			Kind:     challenge.FailureSetup,
			Error:    msg,
			Duration: time.Since(started),
		}
	}

	for i, step := range steps {
		index := i + 1
		c.EnterStep(index)
		r.logger.Info("executing step",
			logging.IntField("level", c.Level()),
			logging.IntField("step", index),
			logging.IntField("total_steps", total),
			logging.StringField("label", step.Label),
		)

		err, faulted := r.runStep(ctx, step)
		if err != nil {
			// Fail fast: later steps are never invoked.
			status := challenge.StatusFailed
			kind := challenge.FailureStep
			if faulted {
				status = challenge.StatusError
				kind = challenge.FailureFault
			}
			msg := fmt.Sprintf(
				"step %d (%s) failed: %v",
				index, step.Label, err,
			)
			r.cleanup(ctx, c)
			c.FinishRun(status, msg, started)
			r.logger.Error("challenge step failed",
				logging.IntField("level", c.Level()),
				logging.IntField("step", index),
				logging.StringField("label", step.Label),
				logging.BoolField("fault", faulted),
				logging.ErrorField(err),
			)
			return challenge.Outcome{
				Level:      c.Level(),
				Kind:       kind,
				FailedStep: index,
				Error:      msg,
				Duration:   time.Since(started),
			}
		}

		c.MarkStep(index, total)

		if r.stepDelay > 0 && index < total {
			select {
			case <-time.After(r.stepDelay):
			case <-ctx.Done():
			}
		}
	}

	r.cleanup(ctx, c)
	c.FinishRun(challenge.StatusCompleted, "", started)
	r.logger.Info("challenge completed",
		logging.IntField("level", c.Level()),
		logging.Float64Field(
			"duration_seconds",
			time.Since(started).Seconds(),
		),
	)
	return challenge.Outcome{
		Level:    c.Level(),
		Success:  true,
		Duration: time.Since(started),
	}
}

// runStep invokes one step, converting a panic into an error.
// faulted distinguishes a panic from an ordinary step failure.
func (r *Runner) runStep(
	ctx context.Context,
	step challenge.Step,
) (err error, faulted bool) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("step panicked: %v", rec)
			faulted = true
		}
	}()
	if step.Run == nil {
		return nil, false
	}
	return step.Run(ctx), false
}

// preSetup invokes the challenge's PreSetup hook, converting a
// panic into an error.
func (r *Runner) preSetup(
	ctx context.Context,
	c *challenge.Challenge,
) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pre-setup panicked: %v", rec)
		}
	}()
	return c.Hooks().PreSetup(ctx)
}

// cleanup invokes PostCleanup best-effort. Cleanup failures
// are logged and never change the run outcome.
func (r *Runner) cleanup(
	ctx context.Context,
	c *challenge.Challenge,
) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("cleanup panicked",
				logging.IntField("level", c.Level()),
				logging.StringField(
					"panic", fmt.Sprint(rec),
				),
			)
		}
	}()
	if err := c.Hooks().PostCleanup(ctx); err != nil {
		r.logger.Warn("cleanup failed",
			logging.IntField("level", c.Level()),
			logging.ErrorField(err),
		)
	}
}
