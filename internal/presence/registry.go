// Package presence tracks which users currently hold a live connection.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
)

// Entry records a user's live connection and when it was last seen.
type Entry struct {
	ConnID   string
	LastSeen time.Time
}

// Registry is the process-wide presence map: user ID to connection handle.
// At most one entry exists per user; a second connection from the same user
// replaces the prior entry's handle (last writer wins) without touching any
// other user's entry. All mutation goes through Register/Unregister — no
// other component reaches into the map.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry

	publisher pubsub.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a presence registry that announces changes on the bus.
func NewRegistry(publisher pubsub.Publisher, opts ...Option) *Registry {
	r := &Registry{
		entries:   make(map[string]Entry),
		publisher: publisher,
		logger:    slog.Default().With("service", "presence"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts or overwrites the entry for userID and records last-seen.
// It publishes a user-online event addressed to every connection except the
// registering one. Never blocks on delivery: publishing hands off to the bus.
func (r *Registry) Register(ctx context.Context, userID, connID string) {
	r.mu.Lock()
	prior, replaced := r.entries[userID]
	r.entries[userID] = Entry{ConnID: connID, LastSeen: r.now()}
	total := len(r.entries)
	r.mu.Unlock()

	if replaced {
		r.logger.Debug("Presence entry replaced", "user_id", userID, "prior_conn", prior.ConnID, "conn_id", connID)
	} else {
		r.logger.Info("User online", "user_id", userID, "conn_id", connID, "online_users", total)
	}

	err := events.PublishPresenceEvent(ctx, r.publisher, events.TopicUserOnline.Name(), events.PresenceEvent{
		Event:         events.EventUserOnline,
		UserID:        userID,
		ExcludeConnID: connID,
	})
	if err != nil {
		r.logger.Error("Failed to publish user-online event", "user_id", userID, "error", err)
	}
}

// Unregister removes the entry for userID if it is still owned by connID and
// publishes a user-offline event to all connections. Idempotent: a missing
// entry, or one already replaced by a newer connection, is left alone and
// produces no event.
func (r *Registry) Unregister(ctx context.Context, userID, connID string) {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	if ok && entry.ConnID == connID {
		delete(r.entries, userID)
	} else {
		ok = false
	}
	total := len(r.entries)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.logger.Info("User offline", "user_id", userID, "online_users", total)

	err := events.PublishPresenceEvent(ctx, r.publisher, events.TopicUserOffline.Name(), events.PresenceEvent{
		Event:  events.EventUserOffline,
		UserID: userID,
	})
	if err != nil {
		r.logger.Error("Failed to publish user-offline event", "user_id", userID, "error", err)
	}
}

// IsOnline reports whether userID currently holds a presence entry.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[userID]
	return ok
}

// LastSeen returns when the user's connection was registered.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	return entry.LastSeen, ok
}

// OnlineUsers returns the IDs of all users with a live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	return users
}
