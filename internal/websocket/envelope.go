package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Client→server event names.
const (
	ClientEventJoinChannels  = "join-channels"
	ClientEventJoinChannel   = "join-channel"
	ClientEventLeaveChannel  = "leave-channel"
	ClientEventSendMessage   = "send-message"
	ClientEventEditMessage   = "edit-message"
	ClientEventDeleteMessage = "delete-message"
	ClientEventTypingStart   = "typing-start"
	ClientEventTypingStop    = "typing-stop"
)

var validate = validator.New()

// Envelope is the frame every client message arrives in: an event name and
// an event-specific payload. Unknown events and malformed payloads are
// answered with an error event on the same connection and nothing else.
type Envelope struct {
	Event   string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// SendMessagePayload asks for a new message in a channel.
type SendMessagePayload struct {
	ChannelID string `json:"channelID" validate:"required"`
	Content   string `json:"content" validate:"required"`
	ReplyTo   string `json:"replyTo,omitempty"`
}

// EditMessagePayload asks for a content replacement on an existing message.
type EditMessagePayload struct {
	MessageID string `json:"messageID" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

// DeleteMessagePayload asks for a soft deletion.
type DeleteMessagePayload struct {
	MessageID string `json:"messageID" validate:"required"`
}

// TypingSignalPayload marks the start or stop of composing in a channel.
type TypingSignalPayload struct {
	ChannelID string `json:"channelID" validate:"required"`
}

// ChannelRefPayload names a single channel, for join-channel/leave-channel.
type ChannelRefPayload struct {
	ChannelID string `json:"channelID" validate:"required"`
}

// ClientError marks an error caused by the client's own frame. Its text is
// safe to echo back on the connection.
type ClientError struct {
	err error
}

func (e *ClientError) Error() string { return e.err.Error() }

func (e *ClientError) Unwrap() error { return e.err }

// ParseEnvelope decodes and validates an incoming frame.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ClientError{err: fmt.Errorf("malformed frame: %w", err)}
	}
	if err := validate.Struct(&env); err != nil {
		return nil, &ClientError{err: fmt.Errorf("invalid frame: %w", err)}
	}
	return &env, nil
}

// decodePayload unmarshals and validates an event payload in one step.
func decodePayload[T any](raw json.RawMessage) (*T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ClientError{err: fmt.Errorf("malformed payload: %w", err)}
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, &ClientError{err: fmt.Errorf("invalid payload: %w", err)}
	}
	return &payload, nil
}

// marshalEvent renders a server→client frame. A payload that cannot marshal
// is a programming error; the frame degrades to a bare event name.
func marshalEvent(event string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	data, _ := json.Marshal(Envelope{Event: event, Payload: raw})
	return data
}

// errorPayload is what the origin connection receives when its request is
// refused. Other subscribers never see it.
type errorPayload struct {
	Message string `json:"message"`
}
