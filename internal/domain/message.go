package domain

import "time"

// MessageKind distinguishes ordinary user messages from server-generated ones.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindSystem MessageKind = "system"
)

// Message is a single channel message. A message is created once by its
// author and then only ever amended: edits replace the content and set the
// edited flag, deletion sets a tombstone. The record itself is never removed
// from storage so channel ordering and audit history stay intact.
//
// Invariant: EditedAt is non-nil iff Edited is true, and DeletedAt is non-nil
// iff Deleted is true. Both flags are terminal; they never flip back to false.
type Message struct {
	ID        string      `json:"id,omitempty"`
	ChannelID string      `json:"channel"`
	AuthorID  string      `json:"sender"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	ReplyTo   string      `json:"replyTo,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	Edited    bool        `json:"edited"`
	EditedAt  *time.Time  `json:"editedAt,omitempty"`
	Deleted   bool        `json:"deleted"`
	DeletedAt *time.Time  `json:"deletedAt,omitempty"`

	// Author carries the resolved display metadata of the sender. It is
	// populated on records returned for broadcast and never persisted.
	Author *User `json:"author,omitempty"`
}
