package hub

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/DoyleJ11/hexbuzz/internal/engine"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
	"github.com/DoyleJ11/hexbuzz/internal/room"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var ErrDuplicateRoomID = errors.New("room id already in use")
var ErrEmptyRoomID = errors.New("room id is empty")

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	ID       string
	HostName string
	Reply    chan CreateResult
}

type CreateResult struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

// RemoveRoom forgets Room under ID. It is ignored when a different room has
// since taken the id.
type RemoveRoom struct {
	ID   string
	Room *room.Room
}

type CountRooms struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (CountRooms) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Config struct {
	GridRows int
	GridCols int
	Alphabet hexgrid.Alphabet
	// Room is the template for every room's options; OnIdle is set by the hub.
	Room room.Options
	Rand *rand.Rand
}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Room.Clock == nil {
		cfg.Room.Clock = clockwork.NewRealClock()
	}
	if cfg.Room.Logger == nil {
		cfg.Room.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		cfg:    cfg,
		log:    cfg.Room.Logger.Named("hub"),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg)

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case RemoveRoom:
				if h.rooms[msg.ID] == msg.Room {
					delete(h.rooms, msg.ID)
					h.log.Info("room removed", zap.String("room", msg.ID))
				}

			case CountRooms:
				msg.Reply <- len(h.rooms)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(msg CreateRoom) CreateResult {
	if msg.ID == "" {
		return CreateResult{Err: ErrEmptyRoomID}
	}
	if msg.HostName == "" {
		return CreateResult{Err: engine.ErrEmptyName}
	}
	if rm := h.rooms[msg.ID]; rm != nil {
		select {
		case <-rm.Done():
			// closed but its RemoveRoom has not arrived yet
		default:
			return CreateResult{Err: ErrDuplicateRoomID}
		}
	}

	grid, err := hexgrid.Generate(h.cfg.GridRows, h.cfg.GridCols, h.cfg.Alphabet, h.cfg.Rand)
	if err != nil {
		return CreateResult{Err: err}
	}

	opts := h.cfg.Room
	opts.OnIdle = h.removeIdle
	state := engine.NewState(msg.ID, msg.HostName, grid, opts.Clock.Now())
	rm := room.NewRoom(h.ctx, state, opts)
	h.rooms[msg.ID] = rm

	h.log.Info("room created",
		zap.String("room", msg.ID),
		zap.String("host", msg.HostName),
		zap.Int("cells", len(grid.Cells)))
	return CreateResult{Room: rm}
}

func (h *Hub) removeIdle(rm *room.Room) {
	select {
	case h.inbox <- RemoveRoom{ID: rm.ID(), Room: rm}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		_ = rm.Send(context.Background(), room.Shutdown{})
	}
	clear(h.rooms)
	h.cancel()
}
