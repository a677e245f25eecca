package types

import "github.com/DoyleJ11/hexbuzz/internal/engine"

// Client message types.
const (
	MsgSetCell     = "set_cell"
	MsgCycleCell   = "cycle_cell"
	MsgResetBoard  = "reset_board"
	MsgBuzz        = "buzz"
	MsgResetBuzzer = "reset_buzzer"
	MsgLeave       = "leave"
)

// Server message types.
const (
	MsgSnapshot     = "snapshot"
	MsgError        = "error"
	MsgBuzzResult   = "buzz_result"
	// MsgBuzzerLocked is pushed once per arming cycle to every subscriber.
	MsgBuzzerLocked = "buzzer_locked"
)

type ClientMessage struct {
	Type   string `json:"type"`
	CellID string `json:"cell_id,omitempty"`
	State  string `json:"state,omitempty"`
}

type ServerMessage struct {
	Type    string        `json:"type"` // "snapshot" | "error" | "buzz_result" | "buzzer_locked"
	Version int           `json:"version,omitempty"`
	State   *engine.State `json:"state,omitempty"`
	Won     bool          `json:"won,omitempty"`
	Winner  string        `json:"winner,omitempty"`
	Error   string        `json:"error,omitempty"`
}
