package presence

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/zhouzirui/social-chat/backend/internal/model/chat"
	"github.com/zhouzirui/social-chat/backend/internal/protocol"
)

// Close reasons passed to Conn.Close.
const (
	// CloseSuperseded is sent to a connection replaced by a newer one for the same user.
	CloseSuperseded = "superseded"
	CloseShutdown   = "server shutting down"
)

// Conn is one live client connection.
type Conn interface {
	ID() string
	UserID() chat.UserID
	// Send enqueues ev without blocking.
	Send(ev protocol.Event) error
	// Close asks the connection to shut down; it must not block.
	Close(reason string)
}

// Option configures a Registry.
type Option func(*Registry)

// WithEviction closes a superseded connection when its user registers again.
func WithEviction(evict bool) Option {
	return func(r *Registry) { r.evictSuperseded = evict }
}

// Registry maps each online user to its current connection. All operations
// share one lock; broadcasts are issued while holding it so every connection
// sees presence snapshots in mutation order.
type Registry struct {
	mu              sync.RWMutex
	entries         map[chat.UserID]Conn
	broadcaster     *Broadcaster
	evictSuperseded bool
	logger          *slog.Logger
}

func NewRegistry(broadcaster *Broadcaster, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		entries:     make(map[chat.UserID]Conn),
		broadcaster: broadcaster,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs conn as the connection for id, replacing any previous one.
func (r *Registry) Register(id chat.UserID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed := r.entries[id]
	r.entries[id] = conn

	if existed && previous.ID() != conn.ID() {
		r.logger.Info("presence entry superseded",
			"user_id", id,
			"old_conn_id", previous.ID(),
			"new_conn_id", conn.ID())
		if r.evictSuperseded {
			previous.Close(CloseSuperseded)
		}
	}

	r.broadcastLocked()
}

// Unregister removes id only while conn is still its current connection. A
// late disconnect from a superseded connection is a no-op.
func (r *Registry) Unregister(id chat.UserID, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[id]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(r.entries, id)

	r.broadcastLocked()
	return true
}

// Lookup returns the live connection for id.
func (r *Registry) Lookup(id chat.UserID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.entries[id]
	return conn, ok
}

// Snapshot returns the online identities in ascending order.
func (r *Registry) Snapshot() []chat.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Count returns the number of online identities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Shutdown closes every registered connection and empties the registry
// without broadcasting.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := lo.Values(r.entries)
	r.entries = make(map[chat.UserID]Conn)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close(CloseShutdown)
	}
	r.logger.Info("presence registry shut down", "closed", len(conns))
}

func (r *Registry) snapshotLocked() []chat.UserID {
	ids := lo.Keys(r.entries)
	slices.Sort(ids)
	return ids
}

func (r *Registry) broadcastLocked() {
	if r.broadcaster == nil {
		return
	}
	r.broadcaster.Broadcast(r.snapshotLocked(), lo.Values(r.entries))
}
