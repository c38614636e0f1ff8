// Package orchestrator owns the system-level run state. It
// executes challenges on a single background worker, enforces
// one active run at a time, implements cooperative pause,
// resume, and stop, and announces every transition on the
// event bus and in the execution log.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"digital.vasic.automation/pkg/challenge"
	"digital.vasic.automation/pkg/config"
	"digital.vasic.automation/pkg/events"
	"digital.vasic.automation/pkg/execlog"
	"digital.vasic.automation/pkg/logging"
	"digital.vasic.automation/pkg/metrics"
	"digital.vasic.automation/pkg/registry"
	"digital.vasic.automation/pkg/runner"
)

// State is the orchestrator's own lifecycle state.
type State string

// Orchestrator states. Running means a worker goroutine is
// actively driving a challenge runner.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// Orchestrator coordinates challenge execution. All control
// methods are safe to call from arbitrary goroutines
// concurrently with the worker.
type Orchestrator struct {
	mu   sync.Mutex
	cond *sync.Cond

	state          State
	currentLevel   int
	runID          string
	stopRequested  bool
	pauseRequested bool
	workerDone     chan struct{}
	cancelRun      context.CancelFunc

	cfg      *config.Config
	registry *registry.Registry
	runner   *runner.Runner
	bus      *events.Bus
	execLog  *execlog.Log
	recorder metrics.Recorder
	logger   logging.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithBus sets the event bus. By default a bus sized from the
// config's event retention is created.
func WithBus(b *events.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithExecutionLog sets the execution log. By default a log
// sized from the config's log capacity is created.
func WithExecutionLog(l *execlog.Log) Option {
	return func(o *Orchestrator) { o.execLog = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithRunner sets the challenge runner.
func WithRunner(r *runner.Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// New creates an Orchestrator in the Idle state.
func New(
	cfg *config.Config,
	reg *registry.Registry,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		state:    StateIdle,
		cfg:      cfg,
		registry: reg,
		recorder: metrics.NoopRecorder{},
		logger:   logging.NewNullLogger(),
	}
	o.cond = sync.NewCond(&o.mu)
	for _, opt := range opts {
		opt(o)
	}
	if o.bus == nil {
		o.bus = events.NewBus(
			cfg.EventRetention,
			events.WithLogger(o.logger),
		)
	}
	if o.execLog == nil {
		o.execLog = execlog.NewLog(cfg.LogCapacity)
	}
	if o.runner == nil {
		o.runner = runner.New(
			runner.WithLogger(o.logger),
			runner.WithStepDelay(cfg.StepDelay),
		)
	}
	return o
}

// Bus returns the event bus for observers.
func (o *Orchestrator) Bus() *events.Bus { return o.bus }

// ExecutionLog returns the execution log.
func (o *Orchestrator) ExecutionLog() *execlog.Log {
	return o.execLog
}

// Registry returns the challenge registry.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// State returns the current orchestrator state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// StartSequence spawns a worker that runs levels startLevel
// through endLevel in order, stopping at the first failure.
// Rejected unless the orchestrator is Idle; the check and the
// transition happen under one lock so two racing callers
// cannot both spawn a worker.
func (o *Orchestrator) StartSequence(
	startLevel, endLevel int,
) bool {
	if startLevel <= 0 || endLevel < startLevel {
		o.logger.Error("invalid sequence range",
			logging.IntField("start_level", startLevel),
			logging.IntField("end_level", endLevel),
		)
		return false
	}

	o.mu.Lock()
	if o.state != StateIdle {
		state := o.state
		o.mu.Unlock()
		o.logger.Warn("cannot start sequence",
			logging.StringField("state", string(state)),
		)
		return false
	}
	ctx, done := o.beginRunLocked()
	o.mu.Unlock()

	o.logger.Info("starting challenge sequence",
		logging.IntField("start_level", startLevel),
		logging.IntField("end_level", endLevel),
	)
	go o.runSequence(ctx, startLevel, endLevel, done)
	return true
}

// StartSingle spawns a worker that runs one level. Allowed
// from Idle or Error (retrying a failed level clears the Error
// state).
func (o *Orchestrator) StartSingle(level int) bool {
	o.mu.Lock()
	if o.state != StateIdle && o.state != StateError {
		state := o.state
		o.mu.Unlock()
		o.logger.Warn("cannot start challenge",
			logging.IntField("level", level),
			logging.StringField("state", string(state)),
		)
		return false
	}
	ctx, done := o.beginRunLocked()
	o.mu.Unlock()

	o.logger.Info("starting single challenge",
		logging.IntField("level", level),
	)
	go o.runSingle(ctx, level, done)
	return true
}

// beginRunLocked resets run flags, assigns a run ID, and
// transitions to Running. Caller holds the mutex.
func (o *Orchestrator) beginRunLocked() (
	context.Context, chan struct{},
) {
	o.stopRequested = false
	o.pauseRequested = false
	o.state = StateRunning
	o.runID = uuid.NewString()
	o.workerDone = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	o.cancelRun = cancel
	o.recorder.IncrementRunTotal()
	return ctx, o.workerDone
}

// Stop requests termination and joins the worker within the
// configured bound. The worker only observes the request
// between challenges; a step already in flight cannot be
// interrupted (the run context is cancelled, which
// cancellation-aware steps may honour). If the join times out
// the orchestrator still settles to Idle and the abandoned
// worker logs when it eventually exits; Stop returns false in
// that case.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	if o.state == StateIdle || o.state == StateStopping {
		o.mu.Unlock()
		return true
	}
	o.logger.Info("stopping challenge execution")
	o.stopRequested = true
	o.state = StateStopping
	o.cond.Broadcast()
	if o.cancelRun != nil {
		o.cancelRun()
	}
	done := o.workerDone
	timeout := o.cfg.StopJoinTimeout
	o.mu.Unlock()

	joined := true
	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			joined = false
		}
	}

	o.mu.Lock()
	if !joined && o.workerDone == done {
		// Abandon the worker: it is stuck inside an opaque
		// external step. The Idle transition below is
		// optimistic; the worker logs on eventual exit.
		o.workerDone = nil
		o.logger.Warn(
			"worker did not stop within timeout; " +
				"state settles to idle optimistically",
		)
	}
	o.state = StateIdle
	o.currentLevel = 0
	o.mu.Unlock()

	o.emit(events.TypeExecutionStopped, 0, map[string]any{
		"reason": "user_requested",
		"joined": joined,
	}, "Execution stopped by user")
	return joined
}

// Pause requests a pause. The in-flight challenge finishes;
// the worker blocks before starting the next one. Rejected
// unless Running.
func (o *Orchestrator) Pause() bool {
	o.mu.Lock()
	if o.state != StateRunning {
		o.mu.Unlock()
		return false
	}
	o.pauseRequested = true
	o.state = StatePaused
	o.mu.Unlock()

	o.logger.Info("pausing challenge execution")
	o.emit(events.TypeExecutionPaused, 0, nil,
		"Execution paused")
	return true
}

// Resume clears the pause and wakes the worker immediately.
// Rejected unless Paused.
func (o *Orchestrator) Resume() bool {
	o.mu.Lock()
	if o.state != StatePaused {
		o.mu.Unlock()
		return false
	}
	o.pauseRequested = false
	o.state = StateRunning
	o.cond.Broadcast()
	o.mu.Unlock()

	o.logger.Info("resuming challenge execution")
	o.emit(events.TypeExecutionResumed, 0, nil,
		"Execution resumed")
	return true
}

// ResetChallenge returns a challenge to NotStarted. Rejected
// while that level is executing.
func (o *Orchestrator) ResetChallenge(level int) bool {
	o.mu.Lock()
	if o.currentLevel == level &&
		(o.state == StateRunning || o.state == StatePaused) {
		o.mu.Unlock()
		o.logger.Error("cannot reset running challenge",
			logging.IntField("level", level),
		)
		return false
	}
	o.mu.Unlock()

	c, err := o.registry.Get(level)
	if err != nil {
		o.logger.Error("cannot reset challenge",
			logging.IntField("level", level),
			logging.ErrorField(err),
		)
		return false
	}
	c.Reset()
	o.emit(events.TypeChallengeReset, level, nil,
		"Challenge reset to initial state")
	return true
}

// Subscribe registers an event listener.
func (o *Orchestrator) Subscribe(
	l events.Listener,
) events.SubscriptionID {
	return o.bus.Subscribe(l)
}

// Unsubscribe removes an event listener.
func (o *Orchestrator) Unsubscribe(
	id events.SubscriptionID,
) bool {
	return o.bus.Unsubscribe(id)
}

// GetLog returns up to count execution log entries, optionally
// filtered to one level (0 means all levels).
func (o *Orchestrator) GetLog(
	level, count int,
) []execlog.Entry {
	if level > 0 {
		return o.execLog.RecentForLevel(level, count)
	}
	return o.execLog.Recent(count)
}

// runSequence is the worker body for sequence mode.
func (o *Orchestrator) runSequence(
	ctx context.Context,
	startLevel, endLevel int,
	done chan struct{},
) {
	defer o.finishWorker(done)

	o.emit(events.TypeSequenceStarted, 0, map[string]any{
		"start_level": startLevel,
		"end_level":   endLevel,
		"run_id":      o.RunID(),
	}, fmt.Sprintf(
		"Sequence started: levels %d to %d",
		startLevel, endLevel,
	))

	for level := startLevel; level <= endLevel; level++ {
		if o.waitIfPaused(done) {
			o.logger.Info("sequence stopped by user")
			return
		}

		outcome := o.runOne(ctx, level)
		if !outcome.Success {
			if o.stoppedOrDetached(done) {
				// The stop cancelled the run context; the
				// failure is a consequence, not an error.
				return
			}
			o.setState(StateError)
			o.emit(
				events.TypeSequenceFailed, level,
				map[string]any{
					"failed_level": level,
					"reason":       string(outcome.Kind),
				},
				fmt.Sprintf(
					"Sequence failed at level %d", level,
				),
			)
			return
		}

		if level < endLevel {
			select {
			case <-time.After(o.cfg.InterChallengeDelay):
			case <-ctx.Done():
			}
		}
	}

	if !o.stoppedOrDetached(done) {
		o.emit(
			events.TypeSequenceCompleted, 0,
			map[string]any{
				"start_level": startLevel,
				"end_level":   endLevel,
			},
			"Sequence completed successfully",
		)
	}
}

// runSingle is the worker body for single-challenge mode.
func (o *Orchestrator) runSingle(
	ctx context.Context,
	level int,
	done chan struct{},
) {
	defer o.finishWorker(done)

	if o.waitIfPaused(done) {
		return
	}
	outcome := o.runOne(ctx, level)
	if !outcome.Success && !o.stoppedOrDetached(done) {
		o.setState(StateError)
	}
}

// runOne checks prerequisites and drives one challenge through
// the runner, emitting lifecycle events in transition order.
func (o *Orchestrator) runOne(
	ctx context.Context,
	level int,
) challenge.Outcome {
	o.mu.Lock()
	o.currentLevel = level
	o.mu.Unlock()
	o.recorder.SetActiveLevel(level)

	c, err := o.registry.Get(level)
	if err != nil {
		msg := err.Error()
		o.emit(events.TypeChallengeError, level,
			map[string]any{"error": msg}, msg)
		return challenge.Outcome{
			Level: level,
			Kind:  challenge.FailureNotFound,
			Error: msg,
		}
	}

	ok, missing, err := o.registry.PrerequisitesSatisfied(
		level,
	)
	if err == nil && !ok {
		// Structural failure: no step executes and the
		// challenge status is left untouched.
		msg := fmt.Sprintf(
			"prerequisites not met for level %d: %v",
			level, missing,
		)
		o.logger.Error("prerequisites not met",
			logging.IntField("level", level),
			logging.LogField("missing", missing),
		)
		o.emit(events.TypeChallengeFailed, level,
			map[string]any{
				"reason":  "prerequisites_not_met",
				"missing": missing,
			}, msg)
		return challenge.Outcome{
			Level: level,
			Kind:  challenge.FailurePrerequisites,
			Error: msg,
		}
	}

	o.emit(events.TypeChallengeStarted, level,
		map[string]any{"name": c.Name()},
		fmt.Sprintf(
			"Challenge started: %s", c.Name(),
		))

	outcome := o.runner.Run(ctx, c)

	switch {
	case outcome.Success:
		o.emit(events.TypeChallengeComplete, level,
			map[string]any{
				"duration_seconds": outcome.Duration.Seconds(),
			},
			fmt.Sprintf(
				"Challenge completed in %.2fs",
				outcome.Duration.Seconds(),
			))
	case outcome.Kind == challenge.FailureFault:
		o.emit(events.TypeChallengeError, level,
			map[string]any{
				"error":       outcome.Error,
				"failed_step": outcome.FailedStep,
			}, outcome.Error)
	default:
		o.emit(events.TypeChallengeFailed, level,
			map[string]any{
				"error":       outcome.Error,
				"failed_step": outcome.FailedStep,
			}, outcome.Error)
	}

	o.recorder.RecordExecution(
		level, string(c.Status()), outcome.Duration,
	)
	o.emit(events.TypeChallengeMetrics, level,
		map[string]any{
			"execution_time": outcome.Duration.Seconds(),
			"success":        outcome.Success,
		},
		fmt.Sprintf(
			"Challenge metrics: %.2fs success=%t",
			outcome.Duration.Seconds(), outcome.Success,
		))

	return outcome
}

// waitIfPaused blocks while the pause flag is set. Returns
// true when a stop was requested or the worker was abandoned,
// in which case the caller must abort the run loop.
func (o *Orchestrator) waitIfPaused(
	done chan struct{},
) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.pauseRequested && !o.stopRequested &&
		o.workerDone == done {
		o.cond.Wait()
	}
	return o.stopRequested || o.workerDone != done
}

// stoppedOrDetached reports whether a stop was requested or
// this worker was abandoned after a join timeout. An abandoned
// worker must not run further levels; a fresh run may already
// own the orchestrator.
func (o *Orchestrator) stoppedOrDetached(
	done chan struct{},
) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopRequested || o.workerDone != done
}

// setState transitions the orchestrator state under the lock.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// RunID returns the current (or last) run identifier.
func (o *Orchestrator) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

// finishWorker settles orchestrator state when a worker
// exits. If Stop abandoned this worker in the meantime, only a
// log entry is produced.
func (o *Orchestrator) finishWorker(done chan struct{}) {
	o.recorder.SetActiveLevel(0)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.workerDone != done {
		o.logger.Warn(
			"abandoned worker exited after stop timeout",
		)
		close(done)
		return
	}

	o.workerDone = nil
	o.currentLevel = 0
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	// Error is sticky until the next StartSingle; Stopping is
	// settled by Stop itself once the join completes.
	if o.state == StateRunning || o.state == StatePaused {
		o.state = StateIdle
	}
	close(done)
}

// emit publishes a system event and appends the matching
// execution log entry.
func (o *Orchestrator) emit(
	t events.Type,
	level int,
	payload map[string]any,
	message string,
) {
	o.bus.Publish(events.New(t, level, payload))
	o.execLog.Append(level, string(t), message)
}
