// Package types holds the websocket wire messages.
//
// Client -> Server
// set_cell (host):
//   cell_id: string   // "c<col>-r<row>"
//   state: "blank" | "highlighted" | "team_a" | "team_b"
//
// cycle_cell (host):
//   cell_id: string
//
// reset_board (host): {}
// reset_buzzer (host): {}
// buzz: {}
// leave: {}   // graceful; the connection closes afterwards
//
// Server -> Client
// snapshot:
//   version: number
//   state:
//     room_id: string
//     host_name: string
//     grid: { rows, cols, cells: [{ id, coord: {col,row}, letter, state }] }
//     players: { [name]: { name, team: "team_a" | "team_b", joined_at } }
//     buzzer: { active, winner, armed_at, locked_at, cycle }
//
// buzz_result (only to the buzzing client):
//   version: number
//   won: boolean
//   winner: string
//
// buzzer_locked (once per arming cycle):
//   version: number
//   winner: string
//   won: boolean   // true on the winner's own connection
//
// error (only to the client that caused it):
//   error: string
package types
