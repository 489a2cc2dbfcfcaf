// Package membership resolves which channels a user can see and what
// authority they hold in each.
package membership

import (
	"context"
	"fmt"

	"github.com/nfrund/relay/internal/domain"
)

// Resolver answers visibility and authority questions against the channel
// store. Public channels grant an implicit member role to everyone unless an
// explicit membership overrides it; private channels grant nothing without
// an explicit membership.
type Resolver struct {
	channels domain.ChannelStore
}

// NewResolver creates a resolver over the given channel store.
func NewResolver(channels domain.ChannelStore) *Resolver {
	return &Resolver{channels: channels}
}

// ChannelsFor returns the set of channels visible to userID: every public
// channel plus the private channels with an explicit membership.
func (r *Resolver) ChannelsFor(ctx context.Context, userID string) ([]domain.Channel, error) {
	channels, err := r.channels.VisibleTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channels for user: %w", err)
	}
	return channels, nil
}

// RoleOf returns the user's effective role in the channel. The boolean is
// false when the user has no access at all — callers must not treat that the
// same as an implicit member. A nonexistent channel surfaces
// domain.ErrChannelNotFound, which is distinct from access denial.
func (r *Resolver) RoleOf(ctx context.Context, channelID, userID string) (domain.Role, bool, error) {
	channel, err := r.channels.Get(ctx, channelID)
	if err != nil {
		return domain.RoleNone, false, err
	}
	return roleIn(channel, userID)
}

// RoleIn is RoleOf for callers that already hold the channel record,
// avoiding a second store round trip on hot paths.
func (r *Resolver) RoleIn(channel *domain.Channel, userID string) (domain.Role, bool) {
	role, ok, _ := roleIn(channel, userID)
	return role, ok
}

func roleIn(channel *domain.Channel, userID string) (domain.Role, bool, error) {
	if role, ok := channel.MemberRole(userID); ok {
		return role, true, nil
	}
	if channel.Visibility == domain.VisibilityPublic {
		return domain.RoleMember, true, nil
	}
	return domain.RoleNone, false, nil
}

// CanRead reports whether the user may observe the channel.
func (r *Resolver) CanRead(ctx context.Context, channelID, userID string) (bool, error) {
	_, ok, err := r.RoleOf(ctx, channelID, userID)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// CanWrite reports whether the user may post to the channel. Write access
// currently mirrors read access; it stays a separate predicate so a future
// read-only membership can diverge without reshaping the authorization path.
func (r *Resolver) CanWrite(ctx context.Context, channelID, userID string) (bool, error) {
	return r.CanRead(ctx, channelID, userID)
}
