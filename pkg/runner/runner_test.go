package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.automation/pkg/challenge"
)

// stepRecorder builds step lists that count invocations so
// fail-fast behaviour is observable.
type stepRecorder struct {
	mu    sync.Mutex
	calls []int
}

func (r *stepRecorder) step(
	index int, err error,
) challenge.Step {
	return challenge.Step{
		Label: "step",
		Run: func(context.Context) error {
			r.mu.Lock()
			r.calls = append(r.calls, index)
			r.mu.Unlock()
			return err
		},
	}
}

func (r *stepRecorder) panicStep(index int) challenge.Step {
	return challenge.Step{
		Label: "panic",
		Run: func(context.Context) error {
			r.mu.Lock()
			r.calls = append(r.calls, index)
			r.mu.Unlock()
			panic("simulated fault")
		},
	}
}

func (r *stepRecorder) invoked() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func TestRunSuccess(t *testing.T) {
	rec := &stepRecorder{}
	c, err := challenge.New(1, "success", "",
		[]challenge.Step{
			rec.step(1, nil),
			rec.step(2, nil),
			rec.step(3, nil),
		})
	require.NoError(t, err)

	outcome := New().Run(context.Background(), c)

	assert.True(t, outcome.Success)
	assert.Equal(t, challenge.FailureNone, outcome.Kind)
	assert.Equal(t, []int{1, 2, 3}, rec.invoked())

	snap := c.Snapshot()
	assert.Equal(t, challenge.StatusCompleted, snap.Status)
	assert.Equal(t, 1.0, snap.Progress)
	assert.Equal(t, 3, snap.CurrentStep)
	assert.Equal(t, 1, snap.SuccessCount)
	require.NotNil(t, snap.LastRun)
}

func TestRunFailFast(t *testing.T) {
	rec := &stepRecorder{}
	stepErr := errors.New("element not found")
	c, err := challenge.New(2, "failing", "",
		[]challenge.Step{
			rec.step(1, nil),
			rec.step(2, nil),
			rec.step(3, stepErr),
			rec.step(4, nil),
			rec.step(5, nil),
		})
	require.NoError(t, err)

	outcome := New().Run(context.Background(), c)

	require.False(t, outcome.Success)
	assert.Equal(t, challenge.FailureStep, outcome.Kind)
	assert.Equal(t, 3, outcome.FailedStep)
	assert.Contains(t, outcome.Error, "element not found")

	// Steps after the failing one are never invoked.
	assert.Equal(t, []int{1, 2, 3}, rec.invoked())

	snap := c.Snapshot()
	assert.Equal(t, challenge.StatusFailed, snap.Status)
	assert.Equal(t, 1, snap.FailureCount)
	assert.Zero(t, snap.SuccessCount)
	require.NotNil(t, snap.LastRun)
}

func TestRunStepPanicBecomesError(t *testing.T) {
	rec := &stepRecorder{}
	c, err := challenge.New(3, "faulting", "",
		[]challenge.Step{
			rec.step(1, nil),
			rec.panicStep(2),
			rec.step(3, nil),
		})
	require.NoError(t, err)

	outcome := New().Run(context.Background(), c)

	require.False(t, outcome.Success)
	assert.Equal(t, challenge.FailureFault, outcome.Kind)
	assert.Equal(t, 2, outcome.FailedStep)
	assert.Contains(t, outcome.Error, "simulated fault")
	assert.Equal(t, []int{1, 2}, rec.invoked())
	assert.Equal(t,
		challenge.StatusError, c.Status())
}

func TestRunSetupFailure(t *testing.T) {
	rec := &stepRecorder{}
	var cleanupCalls int
	c, err := challenge.New(4, "bad setup", "",
		[]challenge.Step{rec.step(1, nil)},
		challenge.WithHooks(challenge.HookFuncs{
			Setup: func(context.Context) error {
				return errors.New("no display")
			},
			Cleanup: func(context.Context) error {
				cleanupCalls++
				return nil
			},
		}),
	)
	require.NoError(t, err)

	outcome := New().Run(context.Background(), c)

	require.False(t, outcome.Success)
	assert.Equal(t, challenge.FailureSetup, outcome.Kind)
	assert.Zero(t, outcome.FailedStep)
	// No step runs, but cleanup still does.
	assert.Empty(t, rec.invoked())
	assert.Equal(t, 1, cleanupCalls)
	assert.Equal(t, challenge.StatusFailed, c.Status())
}

func TestCleanupNeverMasksOutcome(t *testing.T) {
	rec := &stepRecorder{}
	c, err := challenge.New(5, "cleanup fails", "",
		[]challenge.Step{rec.step(1, nil)},
		challenge.WithHooks(challenge.HookFuncs{
			Cleanup: func(context.Context) error {
				return errors.New("cleanup exploded")
			},
		}),
	)
	require.NoError(t, err)

	outcome := New().Run(context.Background(), c)

	assert.True(t, outcome.Success)
	assert.Equal(t,
		challenge.StatusCompleted, c.Status())
}

func TestCleanupPanicIsContained(t *testing.T) {
	c, err := challenge.New(6, "cleanup panics", "", nil,
		challenge.WithHooks(challenge.HookFuncs{
			Cleanup: func(context.Context) error {
				panic("cleanup fault")
			},
		}),
	)
	require.NoError(t, err)

	outcome := New().Run(context.Background(), c)
	assert.True(t, outcome.Success)
}

func TestRunAlwaysRecordsTiming(t *testing.T) {
	rec := &stepRecorder{}
	c, err := challenge.New(7, "timing", "",
		[]challenge.Step{
			rec.step(1, errors.New("boom")),
		})
	require.NoError(t, err)

	outcome := New().Run(context.Background(), c)
	require.False(t, outcome.Success)

	snap := c.Snapshot()
	require.NotNil(t, snap.LastRun)
	assert.Greater(t, outcome.Duration.Nanoseconds(),
		int64(0))
}

func TestCancellationAwareStep(t *testing.T) {
	ctx, cancel := context.WithCancel(
		context.Background(),
	)
	cancel()

	c, err := challenge.New(8, "cancel", "",
		[]challenge.Step{{
			Label: "wait",
			Run: func(ctx context.Context) error {
				return ctx.Err()
			},
		}})
	require.NoError(t, err)

	outcome := New().Run(ctx, c)
	require.False(t, outcome.Success)
	assert.Equal(t, challenge.FailureStep, outcome.Kind)
	assert.Contains(t, outcome.Error,
		context.Canceled.Error())
}
