package engine

import (
	"errors"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/buzzer"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
)

var ErrNotAuthorized = errors.New("only the host may do that")
var ErrUnknownCell = errors.New("unknown cell")
var ErrInvalidCellState = errors.New("invalid cell state")
var ErrEmptyName = errors.New("player name is empty")
var ErrInvalidTeam = errors.New("invalid team")
var ErrUnknownPlayer = errors.New("player is not in the room")
var ErrStaleBuzz = errors.New("buzzer already locked")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Team string

const (
	TeamA Team = "team_a"
	TeamB Team = "team_b"
)

func (t Team) Valid() bool { return t == TeamA || t == TeamB }

// CellState is the board colour claimed by this team.
func (t Team) CellState() hexgrid.CellState {
	if t == TeamB {
		return hexgrid.TeamB
	}
	return hexgrid.TeamA
}

type Player struct {
	Name     string    `json:"name"`
	Team     Team      `json:"team"`
	JoinedAt time.Time `json:"joined_at"`
}

type State struct {
	RoomID    string            `json:"room_id"`
	Grid      hexgrid.Grid      `json:"grid"`
	Players   map[string]Player `json:"players"`
	Buzzer    buzzer.State      `json:"buzzer"`
	HostName  string            `json:"host_name"`
	CreatedAt time.Time         `json:"created_at"`
}

type CommandType string

const (
	CmdJoin         CommandType = "Join"
	CmdLeave        CommandType = "Leave"
	CmdSetCellState CommandType = "SetCellState"
	CmdCycleCell    CommandType = "CycleCell"
	CmdResetBoard   CommandType = "ResetBoard"
	CmdBuzz         CommandType = "Buzz"
	CmdResetBuzzer  CommandType = "ResetBuzzer"
)

/*
	CmdJoin         -> EvtPlayerJoined
	CmdLeave        -> EvtPlayerLeft (nothing if the name is already gone)
	CmdSetCellState -> EvtCellChanged
	CmdCycleCell    -> EvtCellChanged
	CmdResetBoard   -> EvtBoardReset
	CmdBuzz         -> EvtBuzzerLocked, or ErrStaleBuzz once someone holds the lock
	CmdResetBuzzer  -> EvtBuzzerReset (nothing if already armed)
*/

// Command is a client intent. Actor is the issuing player's name.
type Command struct {
	Type   CommandType
	Actor  string
	CellID string
	State  hexgrid.CellState
	Team   Team
	At     time.Time
}

type EventType string

const (
	EvtPlayerJoined EventType = "PlayerJoined"
	EvtPlayerLeft   EventType = "PlayerLeft"
	EvtCellChanged  EventType = "CellChanged"
	EvtBoardReset   EventType = "BoardReset"
	EvtBuzzerLocked EventType = "BuzzerLocked"
	EvtBuzzerReset  EventType = "BuzzerReset"
)

type Event struct {
	Type   EventType
	Player string
	Team   Team
	CellID string
	State  hexgrid.CellState
	At     time.Time
}

// Apply validates cmd against s and returns the resulting events and state.
// s is never modified; an empty event list means nothing changed.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdJoin:
		if cmd.Actor == "" {
			return nil, s, ErrEmptyName
		}
		if !cmd.Team.Valid() {
			return nil, s, ErrInvalidTeam
		}
		newState := s.Clone()
		newState.Players[cmd.Actor] = Player{Name: cmd.Actor, Team: cmd.Team, JoinedAt: cmd.At}
		return []Event{{Type: EvtPlayerJoined, Player: cmd.Actor, Team: cmd.Team, At: cmd.At}}, newState, nil

	case CmdLeave:
		if _, ok := s.Players[cmd.Actor]; !ok {
			return nil, s, nil
		}
		newState := s.Clone()
		delete(newState.Players, cmd.Actor)
		return []Event{{Type: EvtPlayerLeft, Player: cmd.Actor, At: cmd.At}}, newState, nil

	case CmdSetCellState, CmdCycleCell:
		if !isHost(s, cmd.Actor) {
			return nil, s, ErrNotAuthorized
		}
		cell, ok := s.Grid.Cell(cmd.CellID)
		if !ok {
			return nil, s, ErrUnknownCell
		}

		next := cmd.State
		if cmd.Type == CmdCycleCell {
			next = cell.State.Next()
		} else if !next.Valid() {
			return nil, s, ErrInvalidCellState
		}

		newState := s.Clone()
		newState.Grid.SetState(cell.ID, next)
		return []Event{{Type: EvtCellChanged, Player: cmd.Actor, CellID: cell.ID, State: next, At: cmd.At}}, newState, nil

	case CmdResetBoard:
		if !isHost(s, cmd.Actor) {
			return nil, s, ErrNotAuthorized
		}
		newState := s.Clone()
		newState.Grid.Clear()
		return []Event{{Type: EvtBoardReset, Player: cmd.Actor, At: cmd.At}}, newState, nil

	case CmdBuzz:
		if _, ok := s.Players[cmd.Actor]; !ok {
			return nil, s, ErrUnknownPlayer
		}
		locked, won := s.Buzzer.TryLock(cmd.Actor, cmd.At)
		if !won {
			return nil, s, ErrStaleBuzz
		}
		newState := s.Clone()
		newState.Buzzer = locked
		return []Event{{Type: EvtBuzzerLocked, Player: cmd.Actor, At: cmd.At}}, newState, nil

	case CmdResetBuzzer:
		if !isHost(s, cmd.Actor) {
			return nil, s, ErrNotAuthorized
		}
		if !s.Buzzer.Locked() {
			return nil, s, nil
		}
		newState := s.Clone()
		newState.Buzzer = s.Buzzer.Reset(cmd.At)
		return []Event{{Type: EvtBuzzerReset, Player: cmd.Actor, At: cmd.At}}, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func isHost(s State, name string) bool {
	return name != "" && name == s.HostName
}
