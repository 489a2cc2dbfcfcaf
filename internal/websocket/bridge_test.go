package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
)

type fakeChat struct {
	mu      sync.Mutex
	sends   []SendMessagePayload
	sendErr error
}

func (f *fakeChat) Send(ctx context.Context, channelID, authorID, content, replyTo string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sends = append(f.sends, SendMessagePayload{ChannelID: channelID, Content: content, ReplyTo: replyTo})
	return &domain.Message{ID: "message:test", ChannelID: channelID, AuthorID: authorID, Content: content}, nil
}

func (f *fakeChat) Edit(ctx context.Context, messageID, editorID, content string) (*domain.Message, error) {
	return &domain.Message{ID: messageID, Content: content}, nil
}

func (f *fakeChat) Delete(ctx context.Context, messageID, actorID string) error {
	return nil
}

type fakePresence struct {
	mu         sync.Mutex
	registered []string
	removed    []string
}

func (f *fakePresence) Register(ctx context.Context, userID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, userID)
}

func (f *fakePresence) Unregister(ctx context.Context, userID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, userID)
}

type fakeTyping struct {
	mu      sync.Mutex
	started []string
	swept   []string
}

func (f *fakeTyping) Start(ctx context.Context, channelID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, channelID)
}

func (f *fakeTyping) Stop(ctx context.Context, channelID, userID string) {}

func (f *fakeTyping) Sweep(ctx context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swept = append(f.swept, userID)
}

type fakeResolver struct {
	channels    map[string][]domain.Channel
	channelsErr error
}

func (f *fakeResolver) ChannelsFor(ctx context.Context, userID string) ([]domain.Channel, error) {
	if f.channelsErr != nil {
		return nil, f.channelsErr
	}
	return f.channels[userID], nil
}

func (f *fakeResolver) CanRead(ctx context.Context, channelID, userID string) (bool, error) {
	for _, ch := range f.channels[userID] {
		if ch.ID == channelID {
			return true, nil
		}
	}
	return false, nil
}

type harness struct {
	bridge   *Bridge
	bus      *pubsub.WatermillBridge
	chat     *fakeChat
	presence *fakePresence
	typing   *fakeTyping
	resolver *fakeResolver
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, channels map[string][]domain.Channel) *harness {
	t.Helper()

	bus := pubsub.NewWatermillBridge()
	chat := &fakeChat{}
	presence := &fakePresence{}
	typing := &fakeTyping{}

	resolver := &fakeResolver{channels: channels}
	bridge := NewBridge(chat, presence, typing, resolver, bus)

	ctx, cancel := context.WithCancel(context.Background())
	go bridge.Run(ctx)

	t.Cleanup(func() {
		cancel()
		bus.Close()
	})

	return &harness{bridge: bridge, bus: bus, chat: chat, presence: presence, typing: typing, resolver: resolver, cancel: cancel}
}

// connect registers a client and waits for the run loop to finish wiring it,
// so a test can publish immediately afterwards without racing registration.
func (h *harness) connect(t *testing.T, connID, userID string) *Client {
	t.Helper()
	client := &Client{
		ID:     connID,
		UserID: userID,
		send:   make(chan []byte, 16),
		bridge: h.bridge,
	}

	h.presence.mu.Lock()
	before := len(h.presence.registered)
	h.presence.mu.Unlock()

	h.bridge.register <- client

	require.Eventually(t, func() bool {
		h.presence.mu.Lock()
		defer h.presence.mu.Unlock()
		return len(h.presence.registered) > before
	}, 2*time.Second, 5*time.Millisecond)

	return client
}

func waitFrame(t *testing.T, client *Client) Envelope {
	t.Helper()
	select {
	case data := <-client.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Envelope{}
	}
}

func assertNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func generalOnly() map[string][]domain.Channel {
	general := domain.Channel{ID: "channel:general", Visibility: domain.VisibilityPublic}
	return map[string][]domain.Channel{
		"user:alice": {general},
		"user:bob":   {general},
	}
}

func TestBridge_RoutesChannelEventsToSubscribers(t *testing.T) {
	h := newHarness(t, generalOnly())

	alice := h.connect(t, "conn-a", "user:alice")
	carol := h.connect(t, "conn-c", "user:carol") // no channels

	err := events.PublishChannelEvent(context.Background(), h.bus, events.EventNewMessage, "channel:general", "", map[string]string{"content": "hi"})
	require.NoError(t, err)

	frame := waitFrame(t, alice)
	assert.Equal(t, events.EventNewMessage, frame.Event)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, "hi", payload["content"])

	assertNoFrame(t, carol)
}

func TestBridge_ExcludesUserFromChannelEvent(t *testing.T) {
	h := newHarness(t, generalOnly())

	alice := h.connect(t, "conn-a", "user:alice")
	bob := h.connect(t, "conn-b", "user:bob")

	err := events.PublishChannelEvent(context.Background(), h.bus, events.EventUserTyping, "channel:general", "user:alice",
		events.TypingPayload{UserID: "user:alice", ChannelID: "channel:general"})
	require.NoError(t, err)

	frame := waitFrame(t, bob)
	assert.Equal(t, events.EventUserTyping, frame.Event)

	// The typist never hears their own indicator, on any of their connections.
	assertNoFrame(t, alice)
}

func TestBridge_PresenceEventSkipsOriginConnection(t *testing.T) {
	h := newHarness(t, generalOnly())

	alice := h.connect(t, "conn-a", "user:alice")
	bob := h.connect(t, "conn-b", "user:bob")

	err := events.PublishPresenceEvent(context.Background(), h.bus, events.TopicUserOnline.Name(), events.PresenceEvent{
		Event:         events.EventUserOnline,
		UserID:        "user:bob",
		ExcludeConnID: "conn-b",
	})
	require.NoError(t, err)

	frame := waitFrame(t, alice)
	assert.Equal(t, events.EventUserOnline, frame.Event)

	var payload events.PresencePayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, "user:bob", payload.UserID)

	assertNoFrame(t, bob)
}

func TestBridge_ConnectAndDisconnectLifecycle(t *testing.T) {
	h := newHarness(t, generalOnly())

	alice := h.connect(t, "conn-a", "user:alice")

	require.Eventually(t, func() bool {
		h.presence.mu.Lock()
		defer h.presence.mu.Unlock()
		return len(h.presence.registered) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.bridge.unregister <- alice

	require.Eventually(t, func() bool {
		h.presence.mu.Lock()
		defer h.presence.mu.Unlock()
		return len(h.presence.removed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Disconnect sweeps the user's typing state.
	h.typing.mu.Lock()
	assert.Equal(t, []string{"user:alice"}, h.typing.swept)
	h.typing.mu.Unlock()

	// The closed client no longer receives broadcasts.
	err := events.PublishChannelEvent(context.Background(), h.bus, events.EventNewMessage, "channel:general", "", nil)
	require.NoError(t, err)

	_, open := <-alice.send
	assert.False(t, open)
}

func TestBridge_HandleIncomingSendMessage(t *testing.T) {
	h := newHarness(t, generalOnly())
	alice := h.connect(t, "conn-a", "user:alice")

	frame := marshalEvent(ClientEventSendMessage, SendMessagePayload{ChannelID: "channel:general", Content: "hello"})
	h.bridge.handleIncoming(alice, frame)

	h.chat.mu.Lock()
	require.Len(t, h.chat.sends, 1)
	assert.Equal(t, "hello", h.chat.sends[0].Content)
	h.chat.mu.Unlock()
}

func TestBridge_HandleIncomingErrorsGoToOriginOnly(t *testing.T) {
	h := newHarness(t, generalOnly())
	alice := h.connect(t, "conn-a", "user:alice")
	bob := h.connect(t, "conn-b", "user:bob")

	h.chat.sendErr = domain.ErrAccessDenied
	frame := marshalEvent(ClientEventSendMessage, SendMessagePayload{ChannelID: "channel:general", Content: "hello"})
	h.bridge.handleIncoming(alice, frame)

	errFrame := waitFrame(t, alice)
	assert.Equal(t, events.EventError, errFrame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(errFrame.Payload, &payload))
	assert.Equal(t, domain.ErrAccessDenied.Error(), payload.Message)

	assertNoFrame(t, bob)
}

func TestBridge_HandleIncomingRejectsMalformedFrames(t *testing.T) {
	h := newHarness(t, generalOnly())
	alice := h.connect(t, "conn-a", "user:alice")

	h.bridge.handleIncoming(alice, []byte("not json"))
	assert.Equal(t, events.EventError, waitFrame(t, alice).Event)

	h.bridge.handleIncoming(alice, marshalEvent("no-such-event", nil))
	assert.Equal(t, events.EventError, waitFrame(t, alice).Event)

	// Valid event, payload missing a required field.
	h.bridge.handleIncoming(alice, marshalEvent(ClientEventSendMessage, SendMessagePayload{Content: "hi"}))
	assert.Equal(t, events.EventError, waitFrame(t, alice).Event)
}

func TestBridge_JoinAndLeaveChannel(t *testing.T) {
	h := newHarness(t, generalOnly())
	alice := h.connect(t, "conn-a", "user:alice")

	// Leaving stops broadcasts for that channel.
	h.bridge.handleIncoming(alice, marshalEvent(ClientEventLeaveChannel, ChannelRefPayload{ChannelID: "channel:general"}))

	err := events.PublishChannelEvent(context.Background(), h.bus, events.EventNewMessage, "channel:general", "", nil)
	require.NoError(t, err)
	assertNoFrame(t, alice)

	// An explicit join restores them.
	h.bridge.handleIncoming(alice, marshalEvent(ClientEventJoinChannel, ChannelRefPayload{ChannelID: "channel:general"}))

	err = events.PublishChannelEvent(context.Background(), h.bus, events.EventNewMessage, "channel:general", "", nil)
	require.NoError(t, err)
	assert.Equal(t, events.EventNewMessage, waitFrame(t, alice).Event)
}

func TestBridge_ResubscribeFailureReportsToClient(t *testing.T) {
	h := newHarness(t, generalOnly())
	alice := h.connect(t, "conn-a", "user:alice")

	h.resolver.channelsErr = errors.New("resolver down")
	h.bridge.handleIncoming(alice, marshalEvent(ClientEventJoinChannels, nil))

	frame := waitFrame(t, alice)
	assert.Equal(t, events.EventError, frame.Event)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.Equal(t, "failed to resolve channels", payload.Message)

	// A failed refresh keeps the subscriptions the connection already had.
	err := events.PublishChannelEvent(context.Background(), h.bus, events.EventNewMessage, "channel:general", "", nil)
	require.NoError(t, err)
	assert.Equal(t, events.EventNewMessage, waitFrame(t, alice).Event)
}

func TestBridge_JoinChannelHonorsAccess(t *testing.T) {
	h := newHarness(t, generalOnly())
	carol := h.connect(t, "conn-c", "user:carol")

	h.bridge.handleIncoming(carol, marshalEvent(ClientEventJoinChannel, ChannelRefPayload{ChannelID: "channel:general"}))
	assert.Equal(t, events.EventError, waitFrame(t, carol).Event)

	err := events.PublishChannelEvent(context.Background(), h.bus, events.EventNewMessage, "channel:general", "", nil)
	require.NoError(t, err)
	assertNoFrame(t, carol)
}

func TestBridge_TypingRequiresSubscription(t *testing.T) {
	h := newHarness(t, generalOnly())
	carol := h.connect(t, "conn-c", "user:carol") // not in channel:general

	frame := marshalEvent(ClientEventTypingStart, TypingSignalPayload{ChannelID: "channel:general"})
	h.bridge.handleIncoming(carol, frame)

	assert.Equal(t, events.EventError, waitFrame(t, carol).Event)

	h.typing.mu.Lock()
	assert.Empty(t, h.typing.started)
	h.typing.mu.Unlock()
}
