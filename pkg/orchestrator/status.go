package orchestrator

import (
	"digital.vasic.automation/pkg/challenge"
	"digital.vasic.automation/pkg/events"
	"digital.vasic.automation/pkg/registry"
)

// Status is a point-in-time view of the whole system suitable
// for serialization.
type Status struct {
	// State is the orchestrator lifecycle state.
	State State `json:"state"`

	// RunID identifies the current or most recent run.
	RunID string `json:"run_id,omitempty"`

	// CurrentLevel is the level being executed, or 0 when no
	// challenge is in flight.
	CurrentLevel int `json:"current_level,omitempty"`

	// Challenges holds a snapshot of every registered
	// challenge in ascending level order.
	Challenges []challenge.Snapshot `json:"challenges"`

	// OverallProgress summarizes completion across the
	// catalog.
	OverallProgress registry.Progress `json:"overall_progress"`

	// RecentEvents holds the newest retained events,
	// newest first.
	RecentEvents []events.Event `json:"recent_events"`
}

// recentEventsInStatus bounds the event slice embedded in a
// status snapshot; the full retention window stays available
// through the bus.
const recentEventsInStatus = 10

// GetStatus assembles a consistent view of orchestrator state,
// per-challenge snapshots, overall progress, and recent
// events.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	s := Status{
		State:        o.state,
		RunID:        o.runID,
		CurrentLevel: o.currentLevel,
	}
	o.mu.Unlock()

	s.Challenges = o.registry.Snapshots()
	s.OverallProgress = o.registry.OverallProgress()
	s.RecentEvents = o.bus.Recent(recentEventsInStatus)
	return s
}
