package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/buzzer"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
	"github.com/DoyleJ11/hexbuzz/internal/httperr"
	"github.com/DoyleJ11/hexbuzz/internal/room"
	"github.com/DoyleJ11/hexbuzz/internal/store"
	"github.com/DoyleJ11/hexbuzz/internal/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Options struct {
	Logger *zap.Logger
	// OutboxSize bounds the snapshots queued for one connection before the
	// room drops it as slow.
	OutboxSize     int
	OriginPatterns []string
}

// Handler serves GET /ws?room=<id>&name=<name>. A connection with a name joins
// the room as that player; one without only observes.
func Handler(s *store.Store, opts Options) http.HandlerFunc {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 8
	}
	log := opts.Logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		roomID := r.URL.Query().Get("room")
		name := r.URL.Query().Get("name")
		if roomID == "" {
			http.Error(w, "missing room", http.StatusBadRequest)
			return
		}

		// Check the room before upgrading so a bad id is a plain HTTP error.
		// The player only joins once the subscription exists.
		if _, err := s.Snapshot(r.Context(), roomID); err != nil {
			httperr.Write(w, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.String("room", roomID), zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			id:     uuid.NewString(),
			roomID: roomID,
			name:   name,
			conn:   conn,
			store:  s,
			log:    log.With(zap.String("room", roomID), zap.String("player", name)),
		}
		c.serve(r.Context(), opts.OutboxSize)
	}
}

type client struct {
	id     string
	roomID string
	name   string
	conn   *websocket.Conn
	store  *store.Store
	log    *zap.Logger
}

func (c *client) serve(ctx context.Context, outboxSize int) {
	// Unsubscribe runs even when Subscribe fails: a subscription that timed
	// out may still have landed in the room.
	graceful := false
	defer func() {
		// ctx may already be cancelled here.
		uctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := c.store.Unsubscribe(uctx, c.roomID, c.id, graceful); err != nil && !errors.Is(err, store.ErrRoomNotFound) {
			c.log.Warn("unsubscribe failed", zap.Error(err))
		}
		c.log.Info("client disconnected", zap.String("client", c.id), zap.Bool("graceful", graceful))
	}()

	out := make(chan room.Snapshot, outboxSize)
	if _, err := c.store.Subscribe(ctx, c.roomID, c.id, c.name, out); err != nil {
		c.log.Warn("subscribe failed", zap.Error(err))
		c.conn.Close(websocket.StatusTryAgainLater, "subscribe failed")
		return
	}
	c.log.Info("client connected", zap.String("client", c.id))

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(ctx)
	defer writeCancel()
	go func() {
		watcher := buzzer.NewWatcher(c.name)
		for snap := range out {
			c.send(writeCtx, types.ServerMessage{Type: types.MsgSnapshot, Version: snap.Version, State: &snap.State})
			if edge, ok := watcher.Observe(snap.State.Buzzer); ok {
				c.send(writeCtx, types.ServerMessage{
					Type:    types.MsgBuzzerLocked,
					Version: snap.Version,
					Winner:  edge.Winner,
					Won:     edge.LocalWon,
				})
			}
		}
		// Dropped as slow or the room closed: end the connection so the reader exits.
		if writeCtx.Err() == nil {
			c.conn.Close(websocket.StatusTryAgainLater, "snapshot stream ended")
		}
	}()

	// Reader loop
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.log.Debug("client closed connection")
			default:
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.sendError(ctx, errors.New("bad json"))
			continue
		}

		if cm.Type == types.MsgLeave {
			if _, err := c.store.RemovePlayer(ctx, c.roomID, c.name); err != nil {
				c.sendError(ctx, err)
				continue
			}
			graceful = true
			return
		}

		if err := c.handle(ctx, cm); err != nil {
			c.sendError(ctx, err)
		}
	}
}

func (c *client) handle(ctx context.Context, cm types.ClientMessage) error {
	switch cm.Type {
	case types.MsgSetCell:
		state, err := hexgrid.ParseCellState(cm.State)
		if err != nil {
			return err
		}
		_, err = c.store.SetCellState(ctx, c.roomID, c.name, cm.CellID, state)
		return err

	case types.MsgCycleCell:
		_, err := c.store.CycleCell(ctx, c.roomID, c.name, cm.CellID)
		return err

	case types.MsgResetBoard:
		_, err := c.store.ResetBoard(ctx, c.roomID, c.name)
		return err

	case types.MsgResetBuzzer:
		_, err := c.store.ResetBuzzer(ctx, c.roomID, c.name)
		return err

	case types.MsgBuzz:
		won, snap, err := c.store.Buzz(ctx, c.roomID, c.name)
		if err != nil {
			return err
		}
		c.send(ctx, types.ServerMessage{
			Type:    types.MsgBuzzResult,
			Version: snap.Version,
			Won:     won,
			Winner:  snap.State.Buzzer.Winner,
		})
		return nil

	default:
		return errors.New("unknown type")
	}
}

func (c *client) send(ctx context.Context, msg types.ServerMessage) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		c.log.Debug("write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

// sendError reports err to this connection only.
func (c *client) sendError(ctx context.Context, err error) {
	c.send(ctx, types.ServerMessage{Type: types.MsgError, Error: err.Error()})
}
