// Package natsmirror forwards room snapshots to NATS so external renderers can
// follow a room without holding a websocket.
package natsmirror

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/room"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const SubjectPrefix = "hexbuzz.rooms"

type Config struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:           url,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

type publisher interface {
	Publish(subj string, data []byte) error
}

type Mirror struct {
	conn publisher
	nc   *nats.Conn
	log  *zap.Logger
}

// New wraps an existing connection.
func New(conn publisher, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{conn: conn, log: log.Named("natsmirror")}
}

func Connect(cfg Config, log *zap.Logger) (*Mirror, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name("hexbuzz"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	m := New(nc, log)
	m.nc = nc
	return m, nil
}

func Subject(roomID string) string {
	return SubjectPrefix + "." + roomID + ".snapshot"
}

// Publish sends snap as JSON. It never blocks the room on a broker failure;
// errors are logged and the snapshot is skipped.
func (m *Mirror) Publish(snap room.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		m.log.Error("marshal snapshot", zap.String("room", snap.State.RoomID), zap.Error(err))
		return
	}
	if err := m.conn.Publish(Subject(snap.State.RoomID), data); err != nil {
		m.log.Warn("publish snapshot",
			zap.String("room", snap.State.RoomID),
			zap.Int("version", snap.Version),
			zap.Error(err))
	}
}

// Close flushes pending snapshots and closes a connection opened by Connect.
func (m *Mirror) Close() error {
	if m.nc == nil {
		return nil
	}
	return m.nc.Drain()
}
