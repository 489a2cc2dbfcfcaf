// Package websocket maintains the live client connections and routes
// bus events out to them and client requests into the services.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
)

// ChatService is the slice of the message lifecycle the bridge drives on
// behalf of clients.
type ChatService interface {
	Send(ctx context.Context, channelID, authorID, content, replyTo string) (*domain.Message, error)
	Edit(ctx context.Context, messageID, editorID, content string) (*domain.Message, error)
	Delete(ctx context.Context, messageID, actorID string) error
}

// PresenceRegistry tracks which users hold a live connection.
type PresenceRegistry interface {
	Register(ctx context.Context, userID, connID string)
	Unregister(ctx context.Context, userID, connID string)
}

// TypingRegistry tracks composing users per channel.
type TypingRegistry interface {
	Start(ctx context.Context, channelID, userID string)
	Stop(ctx context.Context, channelID, userID string)
	Sweep(ctx context.Context, userID string)
}

// ChannelResolver answers which channels a user may observe.
type ChannelResolver interface {
	ChannelsFor(ctx context.Context, userID string) ([]domain.Channel, error)
	CanRead(ctx context.Context, channelID, userID string) (bool, error)
}

// Bridge manages all WebSocket connections and routes messages between
// connected clients and the pub/sub bus. Channel membership is resolved when
// a connection registers and again on an explicit join; a revoked membership
// takes effect at the next join, not retroactively.
type Bridge struct {
	chat     ChatService
	presence PresenceRegistry
	typing   TypingRegistry
	resolver ChannelResolver

	subscriber pubsub.Subscriber
	logger     *slog.Logger

	// clients maps connection ID to its client; subscriptions maps channel
	// ID to the set of connection IDs receiving its broadcasts.
	mu            sync.RWMutex
	clients       map[string]*Client
	subscriptions map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	events     chan pubsub.Message
}

// NewBridge wires the bridge to its services and the bus subscriber.
func NewBridge(chat ChatService, presence PresenceRegistry, typing TypingRegistry, resolver ChannelResolver, subscriber pubsub.Subscriber) *Bridge {
	return &Bridge{
		chat:          chat,
		presence:      presence,
		typing:        typing,
		resolver:      resolver,
		subscriber:    subscriber,
		logger:        slog.Default().With("service", "websocket"),
		clients:       make(map[string]*Client),
		subscriptions: make(map[string]map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		events:        make(chan pubsub.Message, 256),
	}
}

// Run subscribes to the broadcast topics and processes the client lifecycle
// until the context is canceled. Bus events for one channel are handed to
// connections in publish order because delivery happens on this single loop.
func (b *Bridge) Run(ctx context.Context) error {
	topics := []string{
		events.TopicChannelEvent.Name(),
		events.TopicUserOnline.Name(),
		events.TopicUserOffline.Name(),
	}
	for _, topic := range topics {
		if err := b.subscriber.Subscribe(ctx, topic, b.enqueue); err != nil {
			return err
		}
	}

	b.logger.Info("WebSocket bridge started")
	for {
		select {
		case client := <-b.register:
			b.addClient(ctx, client)

		case client := <-b.unregister:
			b.removeClient(ctx, client)

		case msg := <-b.events:
			b.route(msg)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// enqueue hands a bus message to the run loop. Applying backpressure here is
// safe: slow clients are dropped at the send buffer, not at the bus.
func (b *Bridge) enqueue(ctx context.Context, msg pubsub.Message) error {
	select {
	case b.events <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) addClient(ctx context.Context, client *Client) {
	b.mu.Lock()
	b.clients[client.ID] = client
	b.mu.Unlock()

	count := b.resubscribe(ctx, client)

	b.presence.Register(ctx, client.UserID, client.ID)
	b.logger.Info("Client registered", "user_id", client.UserID, "conn_id", client.ID, "channels", count)
}

// resubscribe recomputes the connection's channel subscriptions from the
// current membership state, replacing whatever set it held before. A resolver
// failure keeps the existing subscriptions and tells the origin connection,
// so a client never silently loses its channels.
func (b *Bridge) resubscribe(ctx context.Context, client *Client) int {
	channels, err := b.resolver.ChannelsFor(ctx, client.UserID)
	if err != nil {
		b.logger.Error("Failed to resolve channels for connection", "user_id", client.UserID, "error", err)
		b.sendError(client, &ClientError{err: errors.New("failed to resolve channels")})
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for channelID, subs := range b.subscriptions {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(b.subscriptions, channelID)
		}
	}
	for _, ch := range channels {
		b.subscribeLocked(client, ch.ID)
	}
	return len(channels)
}

func (b *Bridge) subscribeLocked(client *Client, channelID string) {
	subs, ok := b.subscriptions[channelID]
	if !ok {
		subs = make(map[string]*Client)
		b.subscriptions[channelID] = subs
	}
	subs[client.ID] = client
}

func (b *Bridge) unsubscribe(client *Client, channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscriptions[channelID]
	if !ok {
		return
	}
	delete(subs, client.ID)
	if len(subs) == 0 {
		delete(b.subscriptions, channelID)
	}
}

func (b *Bridge) removeClient(ctx context.Context, client *Client) {
	b.mu.Lock()
	if _, ok := b.clients[client.ID]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.clients, client.ID)
	for channelID, subs := range b.subscriptions {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(b.subscriptions, channelID)
		}
	}
	close(client.send)
	b.mu.Unlock()

	b.typing.Sweep(ctx, client.UserID)
	b.presence.Unregister(ctx, client.UserID, client.ID)
	b.logger.Info("Client unregistered", "user_id", client.UserID, "conn_id", client.ID)
}

// route delivers one bus message to the connections it concerns.
func (b *Bridge) route(msg pubsub.Message) {
	switch msg.Topic {
	case events.TopicChannelEvent.Name():
		var ev events.ChannelEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			b.logger.Error("Malformed channel event on bus", "error", err)
			return
		}
		b.deliverChannelEvent(ev)

	case events.TopicUserOnline.Name(), events.TopicUserOffline.Name():
		var ev events.PresenceEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			b.logger.Error("Malformed presence event on bus", "error", err)
			return
		}
		b.deliverPresenceEvent(ev)
	}
}

// deliverChannelEvent fans a channel-scoped event out to the channel's
// subscribed connections, skipping every connection of the excluded user.
func (b *Bridge) deliverChannelEvent(ev events.ChannelEvent) {
	frame := marshalEvent(ev.Event, ev.Payload)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.subscriptions[ev.ChannelID] {
		if ev.ExcludeUserID != "" && client.UserID == ev.ExcludeUserID {
			continue
		}
		client.deliver(frame)
	}
}

// deliverPresenceEvent fans a presence change out to every connection except
// the one that caused it.
func (b *Bridge) deliverPresenceEvent(ev events.PresenceEvent) {
	frame := marshalEvent(ev.Event, events.PresencePayload{UserID: ev.UserID})

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, client := range b.clients {
		if ev.ExcludeConnID != "" && client.ID == ev.ExcludeConnID {
			continue
		}
		client.deliver(frame)
	}
}

// handleIncoming processes one frame from a client. It runs on the client's
// read goroutine so a slow database call never blocks the broadcast loop.
// Failures are reported to the origin connection only.
func (b *Bridge) handleIncoming(client *Client, data []byte) {
	ctx := context.Background()

	env, err := ParseEnvelope(data)
	if err != nil {
		b.sendError(client, err)
		return
	}

	switch env.Event {
	case ClientEventJoinChannels:
		b.resubscribe(ctx, client)

	case ClientEventJoinChannel:
		payload, err := decodePayload[ChannelRefPayload](env.Payload)
		if err != nil {
			b.sendError(client, err)
			return
		}
		ok, err := b.resolver.CanRead(ctx, payload.ChannelID, client.UserID)
		if err != nil {
			b.sendError(client, err)
			return
		}
		if !ok {
			b.sendError(client, domain.ErrAccessDenied)
			return
		}
		b.mu.Lock()
		b.subscribeLocked(client, payload.ChannelID)
		b.mu.Unlock()

	case ClientEventLeaveChannel:
		payload, err := decodePayload[ChannelRefPayload](env.Payload)
		if err != nil {
			b.sendError(client, err)
			return
		}
		b.unsubscribe(client, payload.ChannelID)

	case ClientEventSendMessage:
		payload, err := decodePayload[SendMessagePayload](env.Payload)
		if err != nil {
			b.sendError(client, err)
			return
		}
		if _, err := b.chat.Send(ctx, payload.ChannelID, client.UserID, payload.Content, payload.ReplyTo); err != nil {
			b.sendError(client, err)
		}

	case ClientEventEditMessage:
		payload, err := decodePayload[EditMessagePayload](env.Payload)
		if err != nil {
			b.sendError(client, err)
			return
		}
		if _, err := b.chat.Edit(ctx, payload.MessageID, client.UserID, payload.Content); err != nil {
			b.sendError(client, err)
		}

	case ClientEventDeleteMessage:
		payload, err := decodePayload[DeleteMessagePayload](env.Payload)
		if err != nil {
			b.sendError(client, err)
			return
		}
		if err := b.chat.Delete(ctx, payload.MessageID, client.UserID); err != nil {
			b.sendError(client, err)
		}

	case ClientEventTypingStart, ClientEventTypingStop:
		payload, err := decodePayload[TypingSignalPayload](env.Payload)
		if err != nil {
			b.sendError(client, err)
			return
		}
		if !b.isSubscribed(client.ID, payload.ChannelID) {
			b.sendError(client, domain.ErrAccessDenied)
			return
		}
		if env.Event == ClientEventTypingStart {
			b.typing.Start(ctx, payload.ChannelID, client.UserID)
		} else {
			b.typing.Stop(ctx, payload.ChannelID, client.UserID)
		}

	default:
		b.sendError(client, &ClientError{err: errors.New("unknown event: " + env.Event)})
	}
}

func (b *Bridge) isSubscribed(connID, channelID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subscriptions[channelID][connID]
	return ok
}

// sendError reports a refusal to the origin connection. Domain errors and
// frame validation errors describe the client's own request and pass through;
// anything else is flattened so internals stay internal.
func (b *Bridge) sendError(client *Client, err error) {
	msg := "request failed"
	var ce *ClientError
	switch {
	case errors.Is(err, domain.ErrAccessDenied),
		errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrMessageNotFound),
		errors.As(err, &ce):
		msg = err.Error()
	default:
		b.logger.Warn("Client request failed", "user_id", client.UserID, "conn_id", client.ID, "error", err)
	}
	client.deliver(marshalEvent(events.EventError, errorPayload{Message: msg}))
}
