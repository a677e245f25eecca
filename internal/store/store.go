// Package store is the blocking client-intent API over the hub and room
// actors. Every call is bounded by a timeout; a hub or room that cannot be
// reached in time surfaces as ErrTransportUnavailable so callers may retry.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/engine"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
	"github.com/DoyleJ11/hexbuzz/internal/hub"
	"github.com/DoyleJ11/hexbuzz/internal/room"
)

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrDuplicateRoomID      = hub.ErrDuplicateRoomID
	ErrNotAuthorized        = engine.ErrNotAuthorized
	ErrTransportUnavailable = errors.New("transport unavailable")
)

const DefaultTimeout = 5 * time.Second

type Store struct {
	hub     *hub.Hub
	timeout time.Duration
}

func New(h *hub.Hub, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{hub: h, timeout: timeout}
}

// CreateRoom registers a new room and joins its host as the first player.
func (s *Store) CreateRoom(ctx context.Context, id, hostName string) (room.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply := make(chan hub.CreateResult, 1)
	if err := s.toHub(ctx, hub.CreateRoom{ID: id, HostName: hostName, Reply: reply}); err != nil {
		return room.Snapshot{}, err
	}
	var res hub.CreateResult
	select {
	case res = <-reply:
	case <-ctx.Done():
		return room.Snapshot{}, unavailable(ctx.Err())
	}
	if res.Err != nil {
		return room.Snapshot{}, fmt.Errorf("create room %s: %w", id, res.Err)
	}
	snap, err := s.join(ctx, res.Room, hostName)
	if err != nil {
		s.discard(res.Room)
		return room.Snapshot{}, err
	}
	return snap, nil
}

// discard closes a room whose host never made it onto the roster and frees
// its id.
func (s *Store) discard(rm *room.Room) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_ = rm.Send(ctx, room.Shutdown{})
	_ = s.toHub(ctx, hub.RemoveRoom{ID: rm.ID(), Room: rm})
}

func (s *Store) JoinRoom(ctx context.Context, id, playerName string) (room.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return room.Snapshot{}, err
	}
	return s.join(ctx, rm, playerName)
}

func (s *Store) SetCellState(ctx context.Context, id, actor, cellID string, state hexgrid.CellState) (room.Snapshot, error) {
	res, err := s.command(ctx, id, engine.Command{Type: engine.CmdSetCellState, Actor: actor, CellID: cellID, State: state})
	return res.Snapshot, err
}

func (s *Store) CycleCell(ctx context.Context, id, actor, cellID string) (room.Snapshot, error) {
	res, err := s.command(ctx, id, engine.Command{Type: engine.CmdCycleCell, Actor: actor, CellID: cellID})
	return res.Snapshot, err
}

func (s *Store) ResetBoard(ctx context.Context, id, actor string) (room.Snapshot, error) {
	res, err := s.command(ctx, id, engine.Command{Type: engine.CmdResetBoard, Actor: actor})
	return res.Snapshot, err
}

// Buzz attempts to lock the buzzer for playerName. Losing the race is not an
// error: won is false and the snapshot shows who holds the lock.
func (s *Store) Buzz(ctx context.Context, id, playerName string) (bool, room.Snapshot, error) {
	res, err := s.command(ctx, id, engine.Command{Type: engine.CmdBuzz, Actor: playerName})
	if errors.Is(err, engine.ErrStaleBuzz) {
		return false, res.Snapshot, nil
	}
	if err != nil {
		return false, res.Snapshot, err
	}
	return true, res.Snapshot, nil
}

func (s *Store) ResetBuzzer(ctx context.Context, id, actor string) (room.Snapshot, error) {
	res, err := s.command(ctx, id, engine.Command{Type: engine.CmdResetBuzzer, Actor: actor})
	return res.Snapshot, err
}

// RemovePlayer is idempotent: removing a name that is not in the room succeeds.
func (s *Store) RemovePlayer(ctx context.Context, id, playerName string) (room.Snapshot, error) {
	res, err := s.command(ctx, id, engine.Command{Type: engine.CmdLeave, Actor: playerName})
	return res.Snapshot, err
}

func (s *Store) Snapshot(ctx context.Context, id string) (room.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return room.Snapshot{}, err
	}
	reply := make(chan room.View, 1)
	if err := s.toRoom(ctx, rm, room.GetState{Reply: reply}); err != nil {
		return room.Snapshot{}, err
	}
	select {
	case v := <-reply:
		return room.Snapshot{Version: v.Version, State: v.State}, nil
	case <-ctx.Done():
		return room.Snapshot{}, unavailable(ctx.Err())
	}
}

// Winner runs the connectivity check on the current board.
func (s *Store) Winner(ctx context.Context, id string) (engine.Team, bool, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return "", false, err
	}
	team, ok := snap.State.Winner()
	return team, ok, nil
}

// Subscribe starts pushing snapshots of room id to outbox, beginning with the
// current one. If playerName is set, that player joins the room and is removed
// again should the subscription later end without a graceful Unsubscribe.
// outbox must be buffered; it is closed when the subscription ends.
func (s *Store) Subscribe(ctx context.Context, id, clientID, playerName string, outbox chan room.Snapshot) (room.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return room.Snapshot{}, err
	}
	reply := make(chan room.Result, 1)
	if err := s.toRoom(ctx, rm, room.Subscribe{ClientID: clientID, PlayerName: playerName, Outbox: outbox, Reply: reply}); err != nil {
		return room.Snapshot{}, err
	}
	select {
	case res := <-reply:
		return res.Snapshot, res.Err
	case <-ctx.Done():
		return room.Snapshot{}, unavailable(ctx.Err())
	}
}

func (s *Store) Unsubscribe(ctx context.Context, id, clientID string, graceful bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	return s.toRoom(ctx, rm, room.Unsubscribe{ClientID: clientID, Graceful: graceful})
}

// Rooms counts live rooms.
func (s *Store) Rooms(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply := make(chan int, 1)
	if err := s.toHub(ctx, hub.CountRooms{Reply: reply}); err != nil {
		return 0, err
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, unavailable(ctx.Err())
	}
}

func (s *Store) command(ctx context.Context, id string, cmd engine.Command) (room.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return room.Result{}, err
	}
	reply := make(chan room.Result, 1)
	if err := s.toRoom(ctx, rm, room.FromClient{Cmd: cmd, Reply: reply}); err != nil {
		return room.Result{}, err
	}
	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		return room.Result{}, unavailable(ctx.Err())
	}
}

func (s *Store) join(ctx context.Context, rm *room.Room, playerName string) (room.Snapshot, error) {
	reply := make(chan room.Result, 1)
	if err := s.toRoom(ctx, rm, room.Join{PlayerName: playerName, Reply: reply}); err != nil {
		return room.Snapshot{}, err
	}
	select {
	case res := <-reply:
		return res.Snapshot, res.Err
	case <-ctx.Done():
		return room.Snapshot{}, unavailable(ctx.Err())
	}
}

func (s *Store) lookup(ctx context.Context, id string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := s.toHub(ctx, hub.GetRoom{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rm := <-reply:
		if rm == nil {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
		}
		return rm, nil
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	}
}

func (s *Store) toHub(ctx context.Context, m hub.HubMsg) error {
	select {
	case <-s.hub.Done():
		return unavailable(errors.New("hub stopped"))
	default:
	}
	select {
	case s.hub.Inbox() <- m:
		return nil
	case <-s.hub.Done():
		return unavailable(errors.New("hub stopped"))
	case <-ctx.Done():
		return unavailable(ctx.Err())
	}
}

func (s *Store) toRoom(ctx context.Context, rm *room.Room, m room.Msg) error {
	err := rm.Send(ctx, m)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, room.ErrClosed):
		return fmt.Errorf("%w: %s", ErrRoomNotFound, rm.ID())
	default:
		return unavailable(err)
	}
}

func unavailable(cause error) error {
	return fmt.Errorf("%w: %w", ErrTransportUnavailable, cause)
}
