package typing

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/pubsub"
)

// mockPublisher implements pubsub.Publisher for testing.
type mockPublisher struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (m *mockPublisher) Publish(ctx context.Context, msg pubsub.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) channelEvents(t *testing.T) []events.ChannelEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var evs []events.ChannelEvent
	for _, msg := range m.messages {
		require.Equal(t, events.TopicChannelEvent.Name(), msg.Topic)
		var ev events.ChannelEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		evs = append(evs, ev)
	}
	return evs
}

func TestRegistry_StartAndStop(t *testing.T) {
	publisher := &mockPublisher{}
	registry := NewRegistry(publisher)
	ctx := context.Background()

	registry.Start(ctx, "channel:general", "user:alice")
	assert.Equal(t, []string{"user:alice"}, registry.TypingUsers("channel:general"))

	registry.Stop(ctx, "channel:general", "user:alice")
	assert.Empty(t, registry.TypingUsers("channel:general"))

	evs := publisher.channelEvents(t)
	require.Len(t, evs, 2)

	assert.Equal(t, events.EventUserTyping, evs[0].Event)
	assert.Equal(t, "channel:general", evs[0].ChannelID)
	assert.Equal(t, "user:alice", evs[0].ExcludeUserID)

	assert.Equal(t, events.EventUserStoppedTyping, evs[1].Event)

	var payload events.TypingPayload
	require.NoError(t, json.Unmarshal(evs[1].Payload, &payload))
	assert.Equal(t, "user:alice", payload.UserID)
	assert.Equal(t, "channel:general", payload.ChannelID)
}

func TestRegistry_StartIsIdempotentInTheSet(t *testing.T) {
	publisher := &mockPublisher{}
	registry := NewRegistry(publisher)
	ctx := context.Background()

	registry.Start(ctx, "channel:general", "user:alice")
	registry.Start(ctx, "channel:general", "user:alice")

	assert.Equal(t, []string{"user:alice"}, registry.TypingUsers("channel:general"))
}

func TestRegistry_StopWithoutStartEmitsNothing(t *testing.T) {
	publisher := &mockPublisher{}
	registry := NewRegistry(publisher)
	ctx := context.Background()

	registry.Stop(ctx, "channel:general", "user:alice")
	assert.Empty(t, publisher.channelEvents(t))

	// A second stop after a real start/stop pair is equally silent.
	registry.Start(ctx, "channel:general", "user:alice")
	registry.Stop(ctx, "channel:general", "user:alice")
	registry.Stop(ctx, "channel:general", "user:alice")

	evs := publisher.channelEvents(t)
	require.Len(t, evs, 2)
	assert.Equal(t, events.EventUserStoppedTyping, evs[1].Event)
}

func TestRegistry_ClearOnSend(t *testing.T) {
	publisher := &mockPublisher{}
	registry := NewRegistry(publisher)
	ctx := context.Background()

	registry.Start(ctx, "channel:general", "user:alice")
	registry.ClearOnSend(ctx, "channel:general", "user:alice")

	assert.Empty(t, registry.TypingUsers("channel:general"))

	evs := publisher.channelEvents(t)
	require.Len(t, evs, 2)
	assert.Equal(t, events.EventUserStoppedTyping, evs[1].Event)

	// Sending while not typing clears nothing and emits nothing.
	registry.ClearOnSend(ctx, "channel:general", "user:alice")
	assert.Len(t, publisher.channelEvents(t), 2)
}

func TestRegistry_SweepCoversEveryChannel(t *testing.T) {
	publisher := &mockPublisher{}
	registry := NewRegistry(publisher)
	ctx := context.Background()

	registry.Start(ctx, "channel:one", "user:alice")
	registry.Start(ctx, "channel:two", "user:alice")
	registry.Start(ctx, "channel:two", "user:bob")

	registry.Sweep(ctx, "user:alice")

	assert.Empty(t, registry.TypingUsers("channel:one"))
	assert.Equal(t, []string{"user:bob"}, registry.TypingUsers("channel:two"))

	evs := publisher.channelEvents(t)
	require.Len(t, evs, 5) // three starts plus two sweep stops

	stops := map[string]bool{}
	for _, ev := range evs[3:] {
		assert.Equal(t, events.EventUserStoppedTyping, ev.Event)
		assert.Equal(t, "user:alice", ev.ExcludeUserID)
		stops[ev.ChannelID] = true
	}
	assert.True(t, stops["channel:one"])
	assert.True(t, stops["channel:two"])
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	publisher := &mockPublisher{}
	registry := NewRegistry(publisher)
	ctx := context.Background()

	const numGoroutines = 8
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := "user:" + string(rune('a'+n))
			for j := 0; j < 50; j++ {
				registry.Start(ctx, "channel:general", userID)
				registry.Stop(ctx, "channel:general", userID)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, registry.TypingUsers("channel:general"))
}
