package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"github.com/DoyleJ11/hexbuzz/internal/engine"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
	"github.com/DoyleJ11/hexbuzz/internal/httperr"
	"github.com/DoyleJ11/hexbuzz/internal/room"
	"github.com/DoyleJ11/hexbuzz/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	// PlayerHeader carries the display name of whoever issues a request.
	PlayerHeader    = "X-Player-Name"
	DefaultCellSize = 40.0

	codeAttempts = 10
	qrSize       = 320
)

type API struct {
	store *store.Store
	cfg   Config
	log   *zap.Logger
}

// GenerateCode returns a random four digit room id.
func GenerateCode() (string, error) {
	const charset = "0123456789"

	code := make([]byte, 4)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createRoomRequest struct {
	ID   string `json:"id,omitempty"`
	Host string `json:"host"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type setCellRequest struct {
	State string `json:"state"`
}

type buzzResponse struct {
	Won     bool   `json:"won"`
	Winner  string `json:"winner"`
	Version int    `json:"version"`
}

type winnerResponse struct {
	Winner    engine.Team `json:"winner,omitempty"`
	HasWinner bool        `json:"has_winner"`
}

type layoutCell struct {
	ID      string           `json:"id"`
	Letter  string           `json:"letter"`
	Coord   hexgrid.HexCoord `json:"coord"`
	Center  hexgrid.Point    `json:"center"`
	Corners [6]hexgrid.Point `json:"corners"`
}

type layoutResponse struct {
	CellSize float64      `json:"cell_size"`
	Cells    []layoutCell `json:"cells"`
}

// CreateRoom registers a room under the requested id, or under a fresh four
// digit code when none is given. A requested id that is already live fails
// with 409. Generated codes are retried on collision up to codeAttempts times,
// so under heavy load creation can fail with 503 rather than reuse a live id.
// The retry is a product decision still open for review; see DESIGN.md.
func (a *API) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decode(r, &req); err != nil {
		httperr.Write(w, err)
		return
	}

	if req.ID != "" {
		snap, err := a.store.CreateRoom(r.Context(), req.ID, req.Host)
		if err != nil {
			httperr.Write(w, err)
			return
		}
		httperr.WriteJSON(w, http.StatusCreated, snap)
		return
	}

	for i := 0; i < codeAttempts; i++ {
		code, err := GenerateCode()
		if err != nil {
			httperr.Write(w, err)
			return
		}
		snap, err := a.store.CreateRoom(r.Context(), code, req.Host)
		if errors.Is(err, store.ErrDuplicateRoomID) {
			a.log.Debug("collision on code, regenerating", zap.String("code", code))
			continue
		}
		if err != nil {
			httperr.Write(w, err)
			return
		}
		httperr.WriteJSON(w, http.StatusCreated, snap)
		return
	}
	httperr.Write(w, fmt.Errorf("%w: no free room code after %d attempts", store.ErrTransportUnavailable, codeAttempts))
}

func (a *API) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.Snapshot(r.Context(), chi.URLParam(r, "id"))
	respond(w, snap, err)
}

func (a *API) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		httperr.Write(w, err)
		return
	}
	snap, err := a.store.JoinRoom(r.Context(), chi.URLParam(r, "id"), req.Name)
	respond(w, snap, err)
}

func (a *API) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.RemovePlayer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	respond(w, snap, err)
}

func (a *API) SetCell(w http.ResponseWriter, r *http.Request) {
	var req setCellRequest
	if err := decode(r, &req); err != nil {
		httperr.Write(w, err)
		return
	}
	state, err := hexgrid.ParseCellState(req.State)
	if err != nil {
		httperr.Write(w, fmt.Errorf("%w: %w", httperr.ErrBadRequest, err))
		return
	}
	snap, err := a.store.SetCellState(r.Context(), chi.URLParam(r, "id"), actor(r), chi.URLParam(r, "cellID"), state)
	respond(w, snap, err)
}

func (a *API) CycleCell(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.CycleCell(r.Context(), chi.URLParam(r, "id"), actor(r), chi.URLParam(r, "cellID"))
	respond(w, snap, err)
}

func (a *API) ResetBoard(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.ResetBoard(r.Context(), chi.URLParam(r, "id"), actor(r))
	respond(w, snap, err)
}

func (a *API) Buzz(w http.ResponseWriter, r *http.Request) {
	won, snap, err := a.store.Buzz(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, buzzResponse{Won: won, Winner: snap.State.Buzzer.Winner, Version: snap.Version})
}

func (a *API) ResetBuzzer(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.ResetBuzzer(r.Context(), chi.URLParam(r, "id"), actor(r))
	respond(w, snap, err)
}

func (a *API) Winner(w http.ResponseWriter, r *http.Request) {
	team, ok, err := a.store.Winner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, winnerResponse{Winner: team, HasWinner: ok})
}

// QR renders a PNG QR code of the room's join link.
func (a *API) QR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.store.Snapshot(r.Context(), id); err != nil {
		httperr.Write(w, err)
		return
	}

	png, err := qrcode.Encode(a.joinURL(r, id), qrcode.Medium, qrSize)
	if err != nil {
		a.log.Error("qr generation failed", zap.String("room", id), zap.Error(err))
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// Layout projects every cell to pixel space for renderers.
func (a *API) Layout(w http.ResponseWriter, r *http.Request) {
	snap, err := a.store.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httperr.Write(w, err)
		return
	}

	size := a.cfg.CellSize
	cells := make([]layoutCell, 0, len(snap.State.Grid.Cells))
	for _, c := range snap.State.Grid.Cells {
		center := hexgrid.Project(c.Coord, size)
		cells = append(cells, layoutCell{
			ID:      c.ID,
			Letter:  c.Letter,
			Coord:   c.Coord,
			Center:  center,
			Corners: hexgrid.Corners(center, size),
		})
	}
	httperr.WriteJSON(w, http.StatusOK, layoutResponse{CellSize: size, Cells: cells})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) joinURL(r *http.Request, id string) string {
	base := strings.TrimSuffix(a.cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(id)
}

func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(PlayerHeader))
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", httperr.ErrBadRequest, err)
	}
	return nil
}

func respond(w http.ResponseWriter, snap room.Snapshot, err error) {
	if err != nil {
		httperr.Write(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, snap)
}
