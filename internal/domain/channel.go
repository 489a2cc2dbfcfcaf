package domain

import "time"

// Visibility controls who can see and post to a channel.
type Visibility string

const (
	// VisibilityPublic channels are readable and writable by every
	// authenticated user; explicit memberships only override the role.
	VisibilityPublic Visibility = "public"
	// VisibilityPrivate channels require an explicit membership for any
	// access at all.
	VisibilityPrivate Visibility = "private"
)

// Membership grants a user a role in a channel. A user holds at most one
// membership per channel.
type Membership struct {
	UserID   string    `json:"user"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Channel is a named scope for messages. Channels are created and shaped by
// an external management service; the messaging core mutates only the
// last-message pointer and the last-activity timestamp.
type Channel struct {
	ID            string       `json:"id,omitempty"`
	Name          string       `json:"name"`
	Visibility    Visibility   `json:"visibility"`
	Members       []Membership `json:"members"`
	LastMessageID string       `json:"lastMessage,omitempty"`
	LastActivity  time.Time    `json:"lastActivity"`
}

// MemberRole returns the explicit membership role for userID, if one exists.
func (c *Channel) MemberRole(userID string) (Role, bool) {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return ParseRole(c.Members[i].Role), true
		}
	}
	return RoleNone, false
}
