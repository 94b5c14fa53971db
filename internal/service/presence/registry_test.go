package presence

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/protocol"
)

type fakeConn struct {
	id     string
	userID chat.UserID

	mu       sync.Mutex
	events   []protocol.Event
	closedBy string
	closed   bool
	sendErr  error
}

func newFakeConn(userID chat.UserID) *fakeConn {
	return &fakeConn{id: uuid.NewString(), userID: userID}
}

func (c *fakeConn) ID() string          { return c.id }
func (c *fakeConn) UserID() chat.UserID { return c.userID }

func (c *fakeConn) Send(ev protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closedBy = reason
}

func (c *fakeConn) lastOnline(t *testing.T) []chat.UserID {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Event == protocol.EventOnlineUsers {
			return c.events[i].Data.([]chat.UserID)
		}
	}
	t.Fatalf("connection %s never received online_users", c.id)
	return nil
}

func (c *fakeConn) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Event == name {
			n++
		}
	}
	return n
}

func newTestRegistry(opts ...Option) *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(NewBroadcaster(logger, nil), logger, opts...)
}

func TestRegistry_Register_Last_Register_Wins(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	first := newFakeConn(1)
	second := newFakeConn(1)

	// When the same identity registers twice
	registry.Register(1, first)
	registry.Register(1, second)

	// Then exactly one entry remains, bound to the second handle
	req.Equal(1, registry.Count())
	got, ok := registry.Lookup(1)
	req.True(ok)
	req.Equal(second.ID(), got.ID())
	req.Equal([]chat.UserID{1}, registry.Snapshot())
}

func TestRegistry_Register_Evicts_Superseded(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(WithEviction(true))
	first := newFakeConn(1)
	second := newFakeConn(1)

	registry.Register(1, first)
	registry.Register(1, second)

	req.True(first.closed)
	req.Equal(CloseSuperseded, first.closedBy)
	req.False(second.closed)
}

func TestRegistry_Register_Without_Eviction_Keeps_Old_Open(t *testing.T) {
	registry := newTestRegistry(WithEviction(false))
	first := newFakeConn(1)

	registry.Register(1, first)
	registry.Register(1, newFakeConn(1))

	require.False(t, first.closed)
}

func TestRegistry_Register_Same_Handle_Twice_Does_Not_Close(t *testing.T) {
	registry := newTestRegistry(WithEviction(true))
	conn := newFakeConn(1)

	registry.Register(1, conn)
	registry.Register(1, conn)

	require.False(t, conn.closed)
}

func TestRegistry_Broadcast_After_Each_Connect(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	a := newFakeConn(1)
	b := newFakeConn(2)

	// Given A then B connect
	registry.Register(1, a)
	req.Equal([]chat.UserID{1}, a.lastOnline(t))
	registry.Register(2, b)

	// Then every connection's latest snapshot is {A, B}
	req.ElementsMatch([]chat.UserID{1, 2}, a.lastOnline(t))
	req.ElementsMatch([]chat.UserID{1, 2}, b.lastOnline(t))
	req.Equal(2, a.count(protocol.EventOnlineUsers))
	req.Equal(1, b.count(protocol.EventOnlineUsers))
}

func TestRegistry_Unregister_Excludes_Leaving_Identity(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	a := newFakeConn(1)
	b := newFakeConn(2)
	registry.Register(1, a)
	registry.Register(2, b)

	removed := registry.Unregister(1, a)

	req.True(removed)
	req.Equal([]chat.UserID{2}, b.lastOnline(t))
	req.Equal(2, a.count(protocol.EventOnlineUsers), "leaving connection gets no broadcast after removal")
	_, ok := registry.Lookup(1)
	req.False(ok)
}

func TestRegistry_Unregister_Stale_Handle_Is_Noop(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	old := newFakeConn(1)
	newer := newFakeConn(1)
	watcher := newFakeConn(2)
	registry.Register(2, watcher)
	registry.Register(1, old)
	registry.Register(1, newer)
	before := watcher.count(protocol.EventOnlineUsers)

	// When the superseded connection's disconnect arrives late
	removed := registry.Unregister(1, old)

	// Then the newer entry survives and nobody is notified
	req.False(removed)
	got, ok := registry.Lookup(1)
	req.True(ok)
	req.Equal(newer.ID(), got.ID())
	req.Equal(before, watcher.count(protocol.EventOnlineUsers))
}

func TestRegistry_Unregister_Unknown_Identity(t *testing.T) {
	registry := newTestRegistry()
	require.False(t, registry.Unregister(9, newFakeConn(9)))
}

func TestRegistry_Broadcast_Skips_Failing_Connection(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	broken := newFakeConn(1)
	broken.sendErr = errors.New("connection closed")
	healthy := newFakeConn(2)

	registry.Register(1, broken)
	registry.Register(2, healthy)

	req.ElementsMatch([]chat.UserID{1, 2}, healthy.lastOnline(t))
}

func TestRegistry_Shutdown_Closes_All(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	a := newFakeConn(1)
	b := newFakeConn(2)
	registry.Register(1, a)
	registry.Register(2, b)

	registry.Shutdown()

	req.True(a.closed)
	req.True(b.closed)
	req.Zero(registry.Count())
	req.Empty(registry.Snapshot())
}

func TestRegistry_Concurrent_Register_Unregister(t *testing.T) {
	registry := newTestRegistry()
	var wg sync.WaitGroup

	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id chat.UserID) {
			defer wg.Done()
			conn := newFakeConn(id)
			registry.Register(id, conn)
			registry.Lookup(id)
			registry.Snapshot()
			if id%2 == 0 {
				registry.Unregister(id, conn)
			}
		}(chat.UserID(i))
	}
	wg.Wait()

	require.Equal(t, 25, registry.Count())
}
