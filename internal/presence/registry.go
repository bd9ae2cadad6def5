// Package presence tracks which users are reachable and through which live connections.
package presence

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/wire"
)

// Observer is told about every online/offline transition. It runs under the
// registry lock and must not block or call back into the registry.
type Observer func(userID uuid.UUID, online bool)

// Option configures a Registry.
type Option func(*Registry)

// WithObserver installs a transition observer. It runs under the registry lock
// and must not block.
func WithObserver(o Observer) Option { return func(r *Registry) { r.observer = o } }

// Registry maps users to their live connections. A user is present iff it has
// at least one connection; empty entries are never kept.
//
// All mutations and the presence broadcasts they cause happen under one mutex,
// so every connection observes a user's transitions in the same order.
// Broadcasting under the lock is safe because Conn.Push never blocks.
type Registry struct {
	mu       sync.Mutex
	users    map[uuid.UUID]map[uuid.UUID]*Conn
	closed   bool
	observer Observer
	log      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{users: make(map[uuid.UUID]map[uuid.UUID]*Conn), log: log}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register adds c. On the user's first connection every other connection is told
// the user came online. c itself receives the presence snapshot before any later
// delta can reach it. Registering the same connection twice has no effect.
func (r *Registry) Register(c *Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || c.Closed() {
		return errs.ErrConnClosed
	}
	set, ok := r.users[c.UserID]
	if ok {
		if _, dup := set[c.ID]; dup {
			return nil
		}
	} else {
		set = make(map[uuid.UUID]*Conn, 1)
		r.users[c.UserID] = set
	}
	set[c.ID] = c

	if !ok {
		r.broadcastLocked(wire.PresenceChanged(c.UserID.String(), true), c.UserID)
		r.notifyLocked(c.UserID, true)
	}

	snap := wire.PresenceSnapshot(r.snapshotLocked())
	if err := c.Push(&snap); err != nil {
		r.log.Debug("presence: snapshot push failed", zap.Stringer("conn", c.ID), zap.Error(err))
	}
	return nil
}

// Deregister removes c. When it was the user's last connection the entry is
// removed and every remaining connection is told the user went offline.
// Unknown connections are ignored. It reports whether c was registered.
func (r *Registry) Deregister(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[c.UserID]
	if !ok {
		return false
	}
	if cur, ok := set[c.ID]; !ok || cur != c {
		return false
	}
	delete(set, c.ID)
	if len(set) > 0 {
		return true
	}

	delete(r.users, c.UserID)
	r.broadcastLocked(wire.PresenceChanged(c.UserID.String(), false), c.UserID)
	r.notifyLocked(c.UserID, false)
	return true
}

// ConnectionsFor returns the user's live connections; empty for offline users.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.users[userID]
	out := make([]*Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Snapshot returns the online users.
func (r *Registry) Snapshot() map[uuid.UUID]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked()
}

// OnlineCount returns the number of online users.
func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Close closes every connection and rejects further registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for _, set := range r.users {
		for _, c := range set {
			c.Close()
		}
	}
	r.users = make(map[uuid.UUID]map[uuid.UUID]*Conn)
}

func (r *Registry) onlineLocked() map[uuid.UUID]bool {
	out := make(map[uuid.UUID]bool, len(r.users))
	for id := range r.users {
		out[id] = true
	}
	return out
}

func (r *Registry) snapshotLocked() map[string]bool {
	out := make(map[string]bool, len(r.users))
	for id := range r.users {
		out[id.String()] = true
	}
	return out
}

// broadcastLocked pushes ev to every connection not owned by skip.
func (r *Registry) broadcastLocked(ev wire.Event, skip uuid.UUID) {
	for uid, set := range r.users {
		if uid == skip {
			continue
		}
		for _, c := range set {
			if err := c.Push(&ev); err != nil {
				r.log.Debug("presence: broadcast push failed",
					zap.Stringer("conn", c.ID), zap.Stringer("user", uid), zap.Error(err))
			}
		}
	}
}

func (r *Registry) notifyLocked(userID uuid.UUID, online bool) {
	if r.observer != nil {
		r.observer(userID, online)
	}
}
