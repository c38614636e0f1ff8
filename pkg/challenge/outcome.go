package challenge

import "time"

// FailureKind classifies why a run did not succeed. Expected
// failures are values, not errors: they never cross the
// orchestrator boundary as exceptions (callers observe them
// through status fields and events).
type FailureKind string

const (
	// FailureNone means the run succeeded.
	FailureNone FailureKind = ""

	// FailurePrerequisites means a prerequisite level was not
	// completed; no step was executed.
	FailurePrerequisites FailureKind = "prerequisites_not_met"

	// FailureSetup means PreSetup reported an error.
	FailureSetup FailureKind = "setup_failed"

	// FailureStep means a step returned an error.
	FailureStep FailureKind = "step_failure"

	// FailureFault means a step panicked. The panic is
	// recovered at the runner boundary and recorded with
	// status Error.
	FailureFault FailureKind = "step_fault"

	// FailureNotFound means the requested level is not
	// registered; no challenge was touched.
	FailureNotFound FailureKind = "level_not_found"
)

// Outcome is the result of driving one challenge through a
// run. Success is false exactly when Kind is not FailureNone.
type Outcome struct {
	// Level identifies the challenge that ran.
	Level int `json:"level"`

	// Success reports whether every step completed.
	Success bool `json:"success"`

	// Kind classifies the failure when Success is false.
	Kind FailureKind `json:"kind,omitempty"`

	// FailedStep is the 1-based index of the step that failed,
	// or 0 when no step is implicated.
	FailedStep int `json:"failed_step,omitempty"`

	// Error is the recorded failure message.
	Error string `json:"error,omitempty"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}
