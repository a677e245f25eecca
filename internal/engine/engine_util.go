package engine

import (
	"maps"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/buzzer"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
)

func NewState(roomID, hostName string, grid hexgrid.Grid, now time.Time) State {
	return State{
		RoomID:    roomID,
		Grid:      grid,
		Players:   map[string]Player{},
		Buzzer:    buzzer.Armed(now),
		HostName:  hostName,
		CreatedAt: now,
	}
}

// Clone deep-copies the mutable parts so snapshots handed to subscribers are
// never touched again.
func (s State) Clone() State {
	cp := s
	cp.Grid = s.Grid.Clone()
	cp.Players = maps.Clone(s.Players)
	if cp.Players == nil {
		cp.Players = map[string]Player{}
	}
	return cp
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Winner reports which team, if any, currently spans its two board edges.
func (s State) Winner() (Team, bool) {
	cell, ok := hexgrid.Winner(s.Grid)
	if !ok {
		return "", false
	}
	if cell == hexgrid.TeamB {
		return TeamB, true
	}
	return TeamA, true
}
