package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/hexbuzz/internal/engine"
	"github.com/DoyleJ11/hexbuzz/internal/hexgrid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
		// good: no snapshot
	}
}

func recvView(t *testing.T, r *Room) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func send(t *testing.T, r *Room, cmd engine.Command) Result {
	t.Helper()
	res := make(chan Result, 1)
	r.Inbox() <- FromClient{Cmd: cmd, Reply: res}
	select {
	case out := <-res:
		return out
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", cmd.Type)
		return Result{}
	}
}

func join(t *testing.T, r *Room, name string) Result {
	t.Helper()
	res := make(chan Result, 1)
	r.Inbox() <- Join{PlayerName: name, Reply: res}
	out := <-res
	require.NoError(t, out.Err)
	return out
}

func newTestRoom(t *testing.T, opts Options) *Room {
	t.Helper()
	a, err := hexgrid.LookupAlphabet(hexgrid.DefaultAlphabet)
	require.NoError(t, err)
	g, err := hexgrid.Generate(5, 5, a, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := NewRoom(ctx, engine.NewState("4821", "Host", g, time.Now()), opts)
	join(t, r, "Host")
	return r
}

func TestRoom_SubscribeGetsCurrentThenUpdates(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 1, first.Version)
	assert.Contains(t, first.State.Players, "Host")

	res := send(t, r, engine.Command{Type: engine.CmdSetCellState, Actor: "Host", CellID: "c2-r2", State: hexgrid.TeamB})
	require.NoError(t, res.Err)

	next := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 2, next.Version)
	c, _ := next.State.Grid.Cell("c2-r2")
	assert.Equal(t, hexgrid.TeamB, c.State)

	// Earlier snapshot was not mutated by the later change.
	c, _ = first.State.Grid.Cell("c2-r2")
	assert.Equal(t, hexgrid.Blank, c.State)
}

func TestRoom_RejectedCommandDoesNotBroadcast(t *testing.T) {
	r := newTestRoom(t, Options{})
	join(t, r, "Sara")

	out := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	res := send(t, r, engine.Command{Type: engine.CmdSetCellState, Actor: "Sara", CellID: "c0-r0", State: hexgrid.TeamA})
	assert.ErrorIs(t, res.Err, engine.ErrNotAuthorized)
	recvNoSnapshot(t, out, 50*time.Millisecond)
}

func TestRoom_DropSlowClient(t *testing.T) {
	r := newTestRoom(t, Options{})

	clientOut := make(chan Snapshot, 1)
	r.Inbox() <- Subscribe{ClientID: "ch1", Outbox: clientOut}
	send(t, r, engine.Command{Type: engine.CmdCycleCell, Actor: "Host", CellID: "c0-r0"})

	view := recvView(t, r)
	assert.Equal(t, 0, view.NumClients, "expected slow client to be dropped")
}

func TestRoom_AbruptDisconnectRemovesPlayer(t *testing.T) {
	r := newTestRoom(t, Options{})
	join(t, r, "Sara")

	sara := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "sara-1", PlayerName: "Sara", Outbox: sara}
	_ = recvSnapshot(t, sara, 100*time.Millisecond)

	r.Inbox() <- Unsubscribe{ClientID: "sara-1"}

	view := recvView(t, r)
	assert.NotContains(t, view.State.Players, "Sara")
	assert.Equal(t, 0, view.Armed)
}

func TestRoom_GracefulUnsubscribeKeepsPlayer(t *testing.T) {
	r := newTestRoom(t, Options{})
	join(t, r, "Sara")

	out := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "sara-1", PlayerName: "Sara", Outbox: out}
	r.Inbox() <- Unsubscribe{ClientID: "sara-1", Graceful: true}

	view := recvView(t, r)
	assert.Contains(t, view.State.Players, "Sara")
	assert.Equal(t, 0, view.NumClients)
}

func TestRoom_SubscribeJoinsAndArms(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := make(chan Snapshot, 4)
	reply := make(chan Result, 1)
	r.Inbox() <- Subscribe{ClientID: "omar-1", PlayerName: "Omar", Outbox: out, Reply: reply}

	res := <-reply
	require.NoError(t, res.Err)
	assert.Contains(t, res.Snapshot.State.Players, "Omar")
	first := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, res.Snapshot.Version, first.Version)

	view := recvView(t, r)
	assert.Equal(t, 1, view.Armed)
	assert.Equal(t, 1, view.NumClients)

	r.Inbox() <- Unsubscribe{ClientID: "omar-1"}
	view = recvView(t, r)
	assert.NotContains(t, view.State.Players, "Omar")
}

func TestRoom_SubscribeExistingPlayerDoesNotRejoin(t *testing.T) {
	r := newTestRoom(t, Options{})
	join(t, r, "Sara")
	before := recvView(t, r)

	out := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "sara-1", PlayerName: "Sara", Outbox: out}
	snap := recvSnapshot(t, out, 100*time.Millisecond)

	assert.Equal(t, before.Version, snap.Version)
	assert.Equal(t, before.State.Players["Sara"], snap.State.Players["Sara"])
}

func TestRoom_UnbufferedOutboxDoesNotStallRoom(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := make(chan Snapshot)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}

	view := recvView(t, r)
	assert.Equal(t, 0, view.NumClients)

	_, ok := <-out
	assert.False(t, ok, "outbox should be closed")
}

func TestRoom_ResubscribeClosesReplacedOutbox(t *testing.T) {
	r := newTestRoom(t, Options{})

	old := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: old}
	_ = recvSnapshot(t, old, 100*time.Millisecond)

	fresh := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: fresh}
	_ = recvSnapshot(t, fresh, 100*time.Millisecond)

	_, ok := <-old
	assert.False(t, ok, "replaced outbox should be closed")
	assert.Equal(t, 1, recvView(t, r).NumClients)

	send(t, r, engine.Command{Type: engine.CmdCycleCell, Actor: "Host", CellID: "c0-r0"})
	_ = recvSnapshot(t, fresh, 100*time.Millisecond)
}

func TestRoom_RejoinIsNewPlayer(t *testing.T) {
	flips := []bool{true, true, false}
	var mu sync.Mutex
	coin := func() bool {
		mu.Lock()
		defer mu.Unlock()
		f := flips[0]
		flips = flips[1:]
		return f
	}
	r := newTestRoom(t, Options{Coin: coin})

	first := join(t, r, "Sara")
	assert.Equal(t, engine.TeamA, first.Snapshot.State.Players["Sara"].Team)

	send(t, r, engine.Command{Type: engine.CmdLeave, Actor: "Sara"})

	second := join(t, r, "Sara")
	assert.Equal(t, engine.TeamB, second.Snapshot.State.Players["Sara"].Team)
}

func TestRoom_ConcurrentBuzzSingleWinner(t *testing.T) {
	r := newTestRoom(t, Options{})

	const guests = 20
	observers := make([]chan Snapshot, 3)
	for i := range observers {
		observers[i] = make(chan Snapshot, guests*4)
		r.Inbox() <- Subscribe{ClientID: fmt.Sprintf("obs-%d", i), Outbox: observers[i]}
	}
	for i := 0; i < guests; i++ {
		join(t, r, fmt.Sprintf("g%d", i))
	}

	var wg sync.WaitGroup
	results := make(chan Result, guests)
	start := make(chan struct{})
	for i := 0; i < guests; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			<-start
			res := make(chan Result, 1)
			r.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdBuzz, Actor: name}, Reply: res}
			results <- <-res
		}(fmt.Sprintf("g%d", i))
	}
	close(start)
	wg.Wait()
	close(results)

	var winners []string
	for res := range results {
		if res.Err == nil {
			winners = append(winners, res.Snapshot.State.Buzzer.Winner)
			continue
		}
		assert.ErrorIs(t, res.Err, engine.ErrStaleBuzz)
	}
	require.Len(t, winners, 1)

	// Every observer converges on that winner and never sees another.
	final := recvView(t, r)
	for _, obs := range observers {
		seen := map[string]bool{}
	drain:
		for {
			select {
			case s := <-obs:
				if s.State.Buzzer.Active {
					seen[s.State.Buzzer.Winner] = true
				}
				if s.Version == final.Version {
					break drain
				}
			case <-time.After(time.Second):
				t.Fatalf("observer never reached version %d", final.Version)
			}
		}
		assert.Equal(t, map[string]bool{winners[0]: true}, seen)
	}
}

type captureMirror struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (m *captureMirror) Publish(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
}

func (m *captureMirror) versions() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, s := range m.snaps {
		out = append(out, s.Version)
	}
	return out
}

func TestRoom_MirrorAndEventHook(t *testing.T) {
	mirror := &captureMirror{}
	events := make(chan engine.Event, 8)
	r := newTestRoom(t, Options{
		Mirror:  mirror,
		OnEvent: func(_ string, evt engine.Event) { events <- evt },
	})
	join(t, r, "Omar")

	res := send(t, r, engine.Command{Type: engine.CmdBuzz, Actor: "Omar"})
	require.NoError(t, res.Err)

	var got []engine.EventType
	for len(events) > 0 {
		got = append(got, (<-events).Type)
	}
	assert.Equal(t, []engine.EventType{engine.EvtPlayerJoined, engine.EvtPlayerJoined, engine.EvtBuzzerLocked}, got)
	assert.Equal(t, []int{1, 2, 3}, mirror.versions())
}

func TestRoom_IdleTimeoutClosesEmptyRoom(t *testing.T) {
	fc := clockwork.NewFakeClock()
	closed := make(chan *Room, 1)
	r := newTestRoom(t, Options{
		Clock:       fc,
		IdleTimeout: time.Minute,
		OnIdle:      func(r *Room) { closed <- r },
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Minute)

	select {
	case got := <-closed:
		assert.Same(t, r, got)
	case <-time.After(time.Second):
		t.Fatal("room was not closed")
	}
	<-r.Done()
	assert.ErrorIs(t, r.Send(context.Background(), Shutdown{}), ErrClosed)
}

func TestRoom_IdleTimeoutSparesSubscribedRoom(t *testing.T) {
	fc := clockwork.NewFakeClock()
	closed := make(chan *Room, 1)
	r := newTestRoom(t, Options{
		Clock:       fc,
		IdleTimeout: time.Minute,
		OnIdle:      func(r *Room) { closed <- r },
	})
	out := make(chan Snapshot, 4)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Minute)

	select {
	case <-closed:
		t.Fatal("room with a subscriber was closed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRoom_ShutdownClosesOutboxes(t *testing.T) {
	r := newTestRoom(t, Options{})

	out := make(chan Snapshot, 2)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 500*time.Millisecond) // drain join snapshot

	r.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("outbox not closed")
	}
}
