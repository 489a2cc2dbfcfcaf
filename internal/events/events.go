// Package events defines the payloads that flow across the pub/sub bus
// between the messaging services and the websocket bridge, together with the
// server→client event names they are delivered under.
package events

import (
	"context"
	"encoding/json"

	"github.com/nfrund/relay/internal/pubsub"
)

// Server→client event names carried on the wire.
const (
	EventNewMessage        = "new-message"
	EventMessageEdited     = "message-edited"
	EventMessageDeleted    = "message-deleted"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventUserOnline        = "user-online"
	EventUserOffline       = "user-offline"
	EventError             = "error"
)

// ChannelEvent is the bus payload for a channel-scoped broadcast. The bridge
// delivers it to every connection subscribed to ChannelID, skipping the
// connections of ExcludeUserID when set (typing indicators are not echoed
// back to the typist).
type ChannelEvent struct {
	Event         string          `json:"event"`
	ChannelID     string          `json:"channelID"`
	ExcludeUserID string          `json:"excludeUserID,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// PresenceEvent is the bus payload for a global presence broadcast. The
// bridge delivers it to every connection, skipping ExcludeConnID when set
// (a user coming online is not told about themselves).
type PresenceEvent struct {
	Event         string `json:"event"`
	UserID        string `json:"userID"`
	ExcludeConnID string `json:"excludeConnID,omitempty"`
}

// MessageDeletedPayload is the only thing broadcast for a deletion: the
// tombstoned content never travels.
type MessageDeletedPayload struct {
	MessageID string `json:"messageID"`
	ChannelID string `json:"channelID"`
}

// TypingPayload identifies who is (or stopped) typing where.
type TypingPayload struct {
	UserID    string `json:"userID"`
	ChannelID string `json:"channelID"`
}

// PresencePayload identifies the user whose presence changed.
type PresencePayload struct {
	UserID string `json:"userID"`
}

// PublishChannelEvent marshals a channel-scoped event and publishes it on
// the channel-event topic with the event payload marshaled in place.
func PublishChannelEvent(ctx context.Context, pub pubsub.Publisher, event, channelID, excludeUserID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(ChannelEvent{
		Event:         event,
		ChannelID:     channelID,
		ExcludeUserID: excludeUserID,
		Payload:       raw,
	})
	if err != nil {
		return err
	}

	return pub.Publish(ctx, pubsub.Message{
		Topic:   TopicChannelEvent.Name(),
		Payload: data,
		Metadata: map[string]string{
			"channel_id": channelID,
		},
	})
}

// PublishPresenceEvent publishes a global presence change.
func PublishPresenceEvent(ctx context.Context, pub pubsub.Publisher, topic string, ev PresenceEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return pub.Publish(ctx, pubsub.Message{
		Topic:   topic,
		UserID:  ev.UserID,
		Payload: data,
	})
}
