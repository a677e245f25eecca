package buzzer

import "time"

// Edge is one armed-to-locked transition as seen by a subscriber.
type Edge struct {
	Winner   string
	LocalWon bool
	Cycle    uint64
	LockedAt time.Time
}

// Watcher turns the stream of buzzer states a client receives into lock
// events. Snapshots may repeat (at-least-once delivery) so each cycle fires
// at most once. The first state observed only seeds the watcher: a client
// that joins while the buzzer is already locked gets no lock event for it.
type Watcher struct {
	self     string
	primed   bool
	fired    bool
	lastLock uint64
}

func NewWatcher(self string) *Watcher { return &Watcher{self: self} }

func (w *Watcher) Observe(s State) (Edge, bool) {
	first := !w.primed
	w.primed = true
	if !s.Active {
		return Edge{}, false
	}
	if w.fired && w.lastLock >= s.Cycle {
		return Edge{}, false
	}
	w.fired = true
	w.lastLock = s.Cycle
	if first {
		return Edge{}, false
	}
	return Edge{
		Winner:   s.Winner,
		LocalWon: s.Winner == w.self,
		Cycle:    s.Cycle,
		LockedAt: s.LockedAt,
	}, true
}
