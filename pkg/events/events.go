// Package events provides the system event bus: a bounded,
// thread-safe publish/subscribe channel with a short replay
// buffer used to announce orchestrator lifecycle transitions.
package events

import "time"

// Type is the symbolic name of a system event.
type Type string

// Event types emitted by the orchestrator.
const (
	TypeSequenceStarted   Type = "sequence_started"
	TypeSequenceCompleted Type = "sequence_completed"
	TypeSequenceFailed    Type = "sequence_failed"
	TypeChallengeStarted  Type = "challenge_started"
	TypeChallengeComplete Type = "challenge_completed"
	TypeChallengeFailed   Type = "challenge_failed"
	TypeChallengeError    Type = "challenge_error"
	TypeChallengeMetrics  Type = "challenge_metrics"
	TypeChallengeReset    Type = "challenge_reset"
	TypeExecutionStopped  Type = "execution_stopped"
	TypeExecutionPaused   Type = "execution_paused"
	TypeExecutionResumed  Type = "execution_resumed"
)

// Event is an immutable record of one lifecycle transition.
type Event struct {
	// Type is the symbolic event name.
	Type Type `json:"type"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Level is the associated challenge level, or 0 when the
	// event is not tied to a single challenge.
	Level int `json:"level,omitempty"`

	// Payload carries event-specific structured data.
	Payload map[string]any `json:"payload,omitempty"`
}

// New creates an Event stamped with the current time.
func New(t Type, level int, payload map[string]any) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Level:     level,
		Payload:   payload,
	}
}
