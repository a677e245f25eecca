// Package buzzer models the single-winner buzzer. State values are immutable;
// callers serialize TryLock through one owner (the room actor) so the
// read-check-write happens as a single step.
package buzzer

import "time"

type State struct {
	Active   bool      `json:"active"`
	Winner   string    `json:"winner,omitempty"`
	ArmedAt  time.Time `json:"armed_at"`
	LockedAt time.Time `json:"locked_at,omitempty"`
	// Cycle counts resets, so two locks by the same player stay distinguishable.
	Cycle uint64 `json:"cycle"`
}

func Armed(at time.Time) State { return State{ArmedAt: at} }

func (s State) Locked() bool { return s.Active }

// TryLock claims the buzzer for name. It only succeeds from the armed state;
// any later attempt in the same cycle gets the unchanged state and false.
func (s State) TryLock(name string, at time.Time) (State, bool) {
	if s.Active || name == "" {
		return s, false
	}
	s.Active = true
	s.Winner = name
	s.LockedAt = at
	return s, true
}

// Reset re-arms the buzzer. Resetting an armed buzzer keeps its cycle.
func (s State) Reset(at time.Time) State {
	if !s.Active {
		return s
	}
	return State{ArmedAt: at, Cycle: s.Cycle + 1}
}
