// Package httperr maps the server's error taxonomy to HTTP responses. Both the
// REST handlers and the websocket upgrade use it so status codes stay in step.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DoyleJ11/hexbuzz/internal/engine"
	"github.com/DoyleJ11/hexbuzz/internal/hub"
	"github.com/DoyleJ11/hexbuzz/internal/store"
)

// ErrBadRequest marks malformed input that never reached a room.
var ErrBadRequest = errors.New("bad request")

type response struct {
	Error string `json:"error"`
}

func Status(err error) int {
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateRoomID):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, store.ErrTransportUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, hub.ErrEmptyRoomID),
		errors.Is(err, engine.ErrEmptyName),
		errors.Is(err, engine.ErrUnknownCell),
		errors.Is(err, engine.ErrInvalidCellState),
		errors.Is(err, engine.ErrInvalidTeam),
		errors.Is(err, engine.ErrUnknownPlayer),
		errors.Is(err, engine.ErrUnsupportedCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Write sends err as a JSON body with its mapped status.
func Write(w http.ResponseWriter, err error) {
	WriteJSON(w, Status(err), response{Error: err.Error()})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
