package room

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/engine"
	"github.com/DoyleJ11/hexbuzz/internal/presence"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("room closed")

type Msg interface{ isRoomMsg() }

// FromClient carries one intent. Reply is optional and must be buffered.
type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isRoomMsg() {}

// Join adds a player to the roster, reusing the team of a name already present.
type Join struct {
	PlayerName string
	Reply      chan Result
}

func (Join) isRoomMsg() {}

// Subscribe registers an outbox for snapshots. When PlayerName is set the
// player is joined (if not already on the roster) and their removal is armed
// in the same step, so an abrupt end of the subscription always cleans up.
// Reply is optional and must be buffered.
type Subscribe struct {
	ClientID   string
	PlayerName string
	Outbox     chan Snapshot // where this client wants to receive snapshots
	Reply      chan Result
}

func (Subscribe) isRoomMsg() {}

// Unsubscribe ends a subscription. A graceful one cancels the armed cleanup;
// otherwise the cleanup runs now.
type Unsubscribe struct {
	ClientID string
	Graceful bool
}

func (Unsubscribe) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type idleCheck struct{}

func (idleCheck) isRoomMsg() {}

// Snapshot is a full, immutable copy of the room at one version.
type Snapshot struct {
	Version int          `json:"version"`
	State   engine.State `json:"state"`
}

type View struct {
	Version    int
	NumClients int
	Armed      int
	State      engine.State
}

type Result struct {
	Snapshot Snapshot
	Events   []engine.Event
	Err      error
}

// Mirror receives every published snapshot, e.g. to forward it to a broker.
type Mirror interface {
	Publish(Snapshot)
}

type Options struct {
	Clock   clockwork.Clock
	Coin    presence.CoinFlip
	Logger  *zap.Logger
	Mirror  Mirror
	OnEvent func(roomID string, evt engine.Event)
	// IdleTimeout closes the room after it has had no subscribers and no
	// traffic for this long. Zero keeps it open until shut down.
	IdleTimeout time.Duration
	OnIdle      func(r *Room)
}

type Room struct {
	id         string
	inbox      chan Msg
	state      engine.State
	version    int
	clients    map[string]chan Snapshot
	presence   *presence.Tracker
	lastActive time.Time
	opts       Options
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewRoom(parent context.Context, initial engine.State, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Room{
		id:         initial.RoomID,
		inbox:      make(chan Msg, 64),
		state:      initial,
		clients:    make(map[string]chan Snapshot),
		presence:   presence.NewTracker(opts.Coin),
		lastActive: opts.Clock.Now(),
		opts:       opts,
		log:        opts.Logger.With(zap.String("room", initial.RoomID)),
		ctx:        ctx,
		cancel:     cancel,
	}
	r.scheduleIdleCheck(opts.IdleTimeout)

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Inbox exposes the mailbox so tests or the transport layer can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

// Send delivers m unless ctx expires or the room has shut down first.
func (r *Room) Send(ctx context.Context, m Msg) error {
	select {
	case <-r.ctx.Done():
		return ErrClosed
	default:
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			if _, ok := m.(idleCheck); !ok {
				r.lastActive = r.opts.Clock.Now()
			}

			switch msg := m.(type) {
			case Join:
				team := r.presence.Team(r.state.Players, msg.PlayerName)
				res := r.apply(engine.Command{Type: engine.CmdJoin, Actor: msg.PlayerName, Team: team})
				reply(msg.Reply, res)

			case Subscribe:
				reply(msg.Reply, r.subscribe(msg))

			case Unsubscribe:
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
				}
				if msg.Graceful {
					r.presence.Disarm(msg.ClientID)
					break
				}
				if name, ok := r.presence.Fire(msg.ClientID); ok {
					r.log.Info("player dropped", zap.String("player", name))
					r.apply(engine.Command{Type: engine.CmdLeave, Actor: name})
				}

			case FromClient:
				res := r.apply(msg.Cmd)
				if res.Err == nil && msg.Cmd.Type == engine.CmdLeave {
					r.presence.Forget(msg.Cmd.Actor)
				}
				reply(msg.Reply, res)

			case GetState:
				// reflect internal state without data races
				msg.Reply <- View{
					Version:    r.version,
					NumClients: len(r.clients),
					Armed:      r.presence.Len(),
					State:      r.state,
				}

			case idleCheck:
				if r.checkIdle() {
					r.log.Info("room idle, closing")
					r.shutdown()
					if r.opts.OnIdle != nil {
						go r.opts.OnIdle(r)
					}
					return
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) subscribe(msg Subscribe) Result {
	if name := msg.PlayerName; name != "" {
		if _, ok := r.state.Players[name]; !ok {
			res := r.apply(engine.Command{Type: engine.CmdJoin, Actor: name, Team: r.presence.Team(r.state.Players, name)})
			if res.Err != nil {
				return res
			}
		}
		r.presence.Arm(msg.ClientID, name)
	}

	if old, ok := r.clients[msg.ClientID]; ok && old != msg.Outbox {
		close(old)
	}
	delete(r.clients, msg.ClientID)

	// Register client + send current snapshot immediately
	snap := r.snapshot()
	select {
	case msg.Outbox <- snap:
		r.clients[msg.ClientID] = msg.Outbox
	default:
		// No room for even the first snapshot. The armed cleanup stays until
		// the transport reports how the connection ended.
		r.log.Warn("dropping client with full outbox", zap.String("client", msg.ClientID))
		close(msg.Outbox)
	}
	return Result{Snapshot: snap}
}

// apply runs cmd through the engine. Being inside the actor loop is what makes
// the buzzer's check-then-lock atomic across racing clients.
func (r *Room) apply(cmd engine.Command) Result {
	if cmd.At.IsZero() {
		cmd.At = r.opts.Clock.Now()
	}

	events, newState, err := engine.Apply(r.state, cmd)
	if err != nil {
		if !errors.Is(err, engine.ErrStaleBuzz) {
			r.log.Debug("command rejected",
				zap.String("type", string(cmd.Type)),
				zap.String("actor", cmd.Actor),
				zap.Error(err))
		}
		return Result{Snapshot: r.snapshot(), Err: err}
	}
	if len(events) == 0 {
		return Result{Snapshot: r.snapshot()}
	}

	r.state = newState
	r.version++
	snap := r.snapshot()
	r.broadcast(snap)

	for _, evt := range events {
		if evt.Type == engine.EvtBuzzerLocked {
			r.log.Info("buzzer locked", zap.String("winner", evt.Player), zap.Time("at", evt.At))
		}
		if r.opts.OnEvent != nil {
			r.opts.OnEvent(r.id, evt)
		}
	}
	return Result{Snapshot: snap, Events: events}
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{Version: r.version, State: r.state}
}

func (r *Room) broadcast(snap Snapshot) {
	for id, ch := range r.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them. Its armed cleanup stays until the
			// transport reports how the connection ended.
			r.log.Warn("dropping slow client", zap.String("client", id))
			close(ch)
			delete(r.clients, id)
		}
	}
	if r.opts.Mirror != nil {
		r.opts.Mirror.Publish(snap)
	}
}

func (r *Room) scheduleIdleCheck(after time.Duration) {
	if r.opts.IdleTimeout <= 0 {
		return
	}
	r.opts.Clock.AfterFunc(after, func() {
		select {
		case r.inbox <- idleCheck{}:
		case <-r.ctx.Done():
		}
	})
}

func (r *Room) checkIdle() bool {
	if len(r.clients) > 0 {
		r.scheduleIdleCheck(r.opts.IdleTimeout)
		return false
	}
	quiet := r.opts.Clock.Since(r.lastActive)
	if quiet >= r.opts.IdleTimeout {
		return true
	}
	r.scheduleIdleCheck(r.opts.IdleTimeout - quiet)
	return false
}

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch) // Tell client no more snapshots
		delete(r.clients, id)
	}
	r.cancel()
}

func reply(ch chan Result, res Result) {
	if ch != nil {
		ch <- res
	}
}
