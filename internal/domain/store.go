package domain

import (
	"context"
	"time"
)

// UserRepository is the narrow view of the external identity service the
// messaging core depends on. How credentials are issued or verified is not
// this system's concern; it consumes the resolved identity and nothing else.
type UserRepository interface {
	// Authenticate resolves an opaque credential token to a user, or fails
	// with ErrAuthenticationFailed.
	Authenticate(ctx context.Context, token string) (*User, error)

	// Get fetches a user's display metadata by ID.
	Get(ctx context.Context, id string) (*User, error)
}

// ChannelStore provides read access to channels plus the two fields the
// messaging core is allowed to mutate. Channel creation and membership
// management belong to an external service.
type ChannelStore interface {
	// Get returns the channel or ErrChannelNotFound.
	Get(ctx context.Context, id string) (*Channel, error)

	// VisibleTo returns every public channel plus every private channel
	// where userID holds an explicit membership.
	VisibleTo(ctx context.Context, userID string) ([]Channel, error)

	// TouchActivity updates the channel's last-message pointer and
	// last-activity timestamp after a successful send.
	TouchActivity(ctx context.Context, channelID, messageID string, at time.Time) error
}

// MessageStore persists message records. Records are append-and-amend only;
// Update never removes a row, soft deletion included.
type MessageStore interface {
	// Create persists a new message and returns the canonical stored record.
	Create(ctx context.Context, msg *Message) (*Message, error)

	// Get returns the message or ErrMessageNotFound.
	Get(ctx context.Context, id string) (*Message, error)

	// Update persists the mutable fields of an existing message and returns
	// the stored record.
	Update(ctx context.Context, msg *Message) (*Message, error)

	// History returns a page of non-deleted messages for a channel, oldest
	// first, plus the total count of non-deleted messages.
	History(ctx context.Context, channelID string, limit, page int) ([]Message, int, error)
}
