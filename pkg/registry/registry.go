// Package registry holds the catalog of challenges indexed by
// integer level and answers lookup, prerequisite, and overall
// progress queries.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"digital.vasic.automation/pkg/challenge"
)

// Registry is the catalog of challenges. Registration happens
// once at startup from a static table; lookups are safe for
// concurrent use alongside the execution worker.
type Registry struct {
	mu         sync.RWMutex
	challenges map[int]*challenge.Challenge
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		challenges: make(map[int]*challenge.Challenge),
	}
}

// Register adds a challenge. Returns an error if the level is
// already taken.
func (r *Registry) Register(c *challenge.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	level := c.Level()
	if _, exists := r.challenges[level]; exists {
		return fmt.Errorf(
			"challenge level already registered: %d", level,
		)
	}
	r.challenges[level] = c
	return nil
}

// Get retrieves a challenge by level.
func (r *Registry) Get(
	level int,
) (*challenge.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.challenges[level]
	if !exists {
		return nil, fmt.Errorf(
			"challenge level not found: %d", level,
		)
	}
	return c, nil
}

// All returns every registered challenge ordered by level.
func (r *Registry) All() []*challenge.Challenge {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(
		[]*challenge.Challenge, 0, len(r.challenges),
	)
	for _, c := range r.challenges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Level() < out[j].Level()
	})
	return out
}

// Levels returns the registered levels in ascending order.
func (r *Registry) Levels() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int, 0, len(r.challenges))
	for level := range r.challenges {
		out = append(out, level)
	}
	sort.Ints(out)
	return out
}

// Count returns the number of registered challenges.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.challenges)
}

// Snapshots returns a status snapshot of every challenge,
// ordered by level.
func (r *Registry) Snapshots() []challenge.Snapshot {
	all := r.All()
	out := make([]challenge.Snapshot, 0, len(all))
	for _, c := range all {
		out = append(out, c.Snapshot())
	}
	return out
}

// PrerequisitesSatisfied reports whether every prerequisite of
// the given level is Completed. The second return value lists
// the unmet prerequisite levels.
func (r *Registry) PrerequisitesSatisfied(
	level int,
) (bool, []int, error) {
	r.mu.RLock()
	c, exists := r.challenges[level]
	r.mu.RUnlock()
	if !exists {
		return false, nil, fmt.Errorf(
			"challenge level not found: %d", level,
		)
	}

	var missing []int
	for _, prereq := range c.Prerequisites() {
		pc, err := r.Get(prereq)
		if err != nil {
			missing = append(missing, prereq)
			continue
		}
		if pc.Status() != challenge.StatusCompleted {
			missing = append(missing, prereq)
		}
	}
	return len(missing) == 0, missing, nil
}

// ValidatePrerequisites checks that every prerequisite
// referenced by a registered challenge is itself registered
// and refers to a lower level. Called once after catalog
// registration.
func (r *Registry) ValidatePrerequisites() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for level, c := range r.challenges {
		for _, prereq := range c.Prerequisites() {
			if _, exists := r.challenges[prereq]; !exists {
				return fmt.Errorf(
					"challenge %d has unregistered "+
						"prerequisite: %d",
					level, prereq,
				)
			}
			if prereq >= level {
				return fmt.Errorf(
					"challenge %d has non-antecedent "+
						"prerequisite: %d",
					level, prereq,
				)
			}
		}
	}
	return nil
}

// Progress summarises completion across the whole catalog.
type Progress struct {
	// Total is the number of registered challenges.
	Total int `json:"total"`

	// Completed is how many are currently Completed.
	Completed int `json:"completed"`

	// Percentage is Completed/Total expressed as 0..100.
	Percentage float64 `json:"percentage"`

	// NextLevel is the smallest level not yet Completed, or
	// one past the highest completed level when everything is
	// done.
	NextLevel int `json:"next_level"`
}

// OverallProgress computes catalog-wide completion.
func (r *Registry) OverallProgress() Progress {
	all := r.All()

	p := Progress{Total: len(all), NextLevel: 1}
	highest := 0
	next := 0
	for _, c := range all {
		if c.Status() == challenge.StatusCompleted {
			p.Completed++
			if c.Level() > highest {
				highest = c.Level()
			}
		} else if next == 0 {
			next = c.Level()
		}
	}
	if p.Total > 0 {
		p.Percentage =
			float64(p.Completed) / float64(p.Total) * 100
	}
	if next != 0 {
		p.NextLevel = next
	} else if highest > 0 {
		p.NextLevel = highest + 1
	}
	return p
}
