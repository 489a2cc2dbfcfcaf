// Package typing tracks which users are composing a message in which channel.
package typing

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
)

// Registry is the process-wide typing map: channel ID to the set of users
// currently typing there. Entries disappear on an explicit stop, when the
// user sends a message in the channel, or when the user disconnects. All
// mutation goes through the methods below.
type Registry struct {
	mu       sync.Mutex
	channels map[string]map[string]struct{}

	publisher pubsub.Publisher
	logger    *slog.Logger
}

// NewRegistry creates a typing registry that announces changes on the bus.
func NewRegistry(publisher pubsub.Publisher) *Registry {
	return &Registry{
		channels:  make(map[string]map[string]struct{}),
		publisher: publisher,
		logger:    slog.Default().With("service", "typing"),
	}
}

// Start adds userID to the channel's typing set and announces it to the
// channel's other subscribers. Adding is idempotent; the announcement is not
// suppressed on repeats, matching clients that re-signal while composing.
func (r *Registry) Start(ctx context.Context, channelID, userID string) {
	r.mu.Lock()
	set, ok := r.channels[channelID]
	if !ok {
		set = make(map[string]struct{})
		r.channels[channelID] = set
	}
	set[userID] = struct{}{}
	r.mu.Unlock()

	r.publish(ctx, events.EventUserTyping, channelID, userID)
}

// Stop removes userID from the channel's typing set and announces the stop
// to the channel's other subscribers. A user who was not in the set is a
// no-op with no event, so duplicate stop events can never reach clients.
func (r *Registry) Stop(ctx context.Context, channelID, userID string) {
	if !r.remove(channelID, userID) {
		return
	}
	r.publish(ctx, events.EventUserStoppedTyping, channelID, userID)
}

// ClearOnSend is the implicit stop invoked by the message lifecycle when the
// author successfully sends in the channel. Same event semantics as Stop.
func (r *Registry) ClearOnSend(ctx context.Context, channelID, userID string) {
	r.Stop(ctx, channelID, userID)
}

// Sweep removes userID from every channel's typing set, announcing one stop
// per affected channel. Invoked when the user disconnects.
func (r *Registry) Sweep(ctx context.Context, userID string) {
	r.mu.Lock()
	var affected []string
	for channelID, set := range r.channels {
		if _, ok := set[userID]; ok {
			delete(set, userID)
			if len(set) == 0 {
				delete(r.channels, channelID)
			}
			affected = append(affected, channelID)
		}
	}
	r.mu.Unlock()

	for _, channelID := range affected {
		r.publish(ctx, events.EventUserStoppedTyping, channelID, userID)
	}
}

// TypingUsers returns the users currently typing in the channel.
func (r *Registry) TypingUsers(channelID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.channels[channelID]
	users := make([]string, 0, len(set))
	for userID := range set {
		users = append(users, userID)
	}
	return users
}

// remove takes userID out of the channel's set, reporting whether it was there.
func (r *Registry) remove(channelID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[channelID]
	if !ok {
		return false
	}
	if _, present := set[userID]; !present {
		return false
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(r.channels, channelID)
	}
	return true
}

func (r *Registry) publish(ctx context.Context, event, channelID, userID string) {
	err := events.PublishChannelEvent(ctx, r.publisher, event, channelID, userID, events.TypingPayload{
		UserID:    userID,
		ChannelID: channelID,
	})
	if err != nil {
		r.logger.Error("Failed to publish typing event", "event", event, "channel_id", channelID, "user_id", userID, "error", err)
	}
}
