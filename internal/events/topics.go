package events

import "github.com/nfrund/relay/internal/topicmgr"

var (
	// TopicChannelEvent carries every channel-scoped broadcast: message
	// lifecycle and typing indicators. Routing everything for a channel
	// through one topic is what guarantees subscribers observe a single
	// relative order (create before edit before delete for one message).
	TopicChannelEvent = topicmgr.DefineModule(topicmgr.TopicConfig{
		Name:        "chat.channel.event",
		Module:      "chat",
		Description: "Channel-scoped broadcast: message lifecycle and typing indicators",
		Example:     `{"event":"new-message","channelID":"channel:general","payload":{...}}`,
	})

	// TopicUserOnline is published when a user's first connection registers.
	TopicUserOnline = topicmgr.DefineFramework(topicmgr.TopicConfig{
		Name:        "presence.user.online",
		Description: "Published when a user comes online",
		Example:     `{"event":"user-online","userID":"user:alice","excludeConnID":"conn456"}`,
	})

	// TopicUserOffline is published when a user's presence entry is removed.
	TopicUserOffline = topicmgr.DefineFramework(topicmgr.TopicConfig{
		Name:        "presence.user.offline",
		Description: "Published when a user goes offline",
		Example:     `{"event":"user-offline","userID":"user:alice"}`,
	})
)

// RegisterTopics registers the shared event topics with the default manager.
// Idempotent: re-registering the same definitions is a no-op.
func RegisterTopics() error {
	manager := topicmgr.Default()

	topics := []topicmgr.Topic{
		TopicChannelEvent,
		TopicUserOnline,
		TopicUserOffline,
	}

	for _, topic := range topics {
		if err := manager.Register(topic); err != nil {
			return err
		}
	}
	return nil
}

// MustRegisterTopics registers the shared event topics and panics on error.
func MustRegisterTopics() {
	if err := RegisterTopics(); err != nil {
		panic("failed to register event topics: " + err.Error())
	}
}
