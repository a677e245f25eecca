// Package presence keeps the roster in line with live connections. It is not
// safe for concurrent use; the room actor owns one Tracker.
package presence

import (
	"math/rand/v2"

	"github.com/DoyleJ11/hexbuzz/internal/engine"
)

// CoinFlip returns true for heads. Team assignment calls it once per join.
type CoinFlip func() bool

func FairCoin() bool { return rand.IntN(2) == 0 }

type Tracker struct {
	flip    CoinFlip
	intents map[string]string // clientID -> player name to remove on abrupt disconnect
}

func NewTracker(flip CoinFlip) *Tracker {
	if flip == nil {
		flip = FairCoin
	}
	return &Tracker{flip: flip, intents: make(map[string]string)}
}

// Team picks the team for a joining player. A name already on the roster
// keeps its team; anyone else gets an independent coin flip, so teams can
// end up unbalanced.
func (t *Tracker) Team(roster map[string]engine.Player, name string) engine.Team {
	if p, ok := roster[name]; ok {
		return p.Team
	}
	if t.flip() {
		return engine.TeamA
	}
	return engine.TeamB
}

// Arm registers, at join time, that clientID's abrupt loss removes name.
func (t *Tracker) Arm(clientID, name string) {
	if name == "" {
		return
	}
	t.intents[clientID] = name
}

// Disarm cancels the intent for a graceful unsubscribe.
func (t *Tracker) Disarm(clientID string) {
	delete(t.intents, clientID)
}

// Fire consumes clientID's intent. It returns the name to remove, unless
// another live connection still speaks for the same player.
func (t *Tracker) Fire(clientID string) (string, bool) {
	name, ok := t.intents[clientID]
	if !ok {
		return "", false
	}
	delete(t.intents, clientID)
	if t.Holds(name) {
		return "", false
	}
	return name, true
}

// Holds reports whether any armed connection belongs to name.
func (t *Tracker) Holds(name string) bool {
	for _, n := range t.intents {
		if n == name {
			return true
		}
	}
	return false
}

// Forget drops every intent for name, used after an explicit leave.
func (t *Tracker) Forget(name string) {
	for id, n := range t.intents {
		if n == name {
			delete(t.intents, id)
		}
	}
}

func (t *Tracker) Len() int { return len(t.intents) }
