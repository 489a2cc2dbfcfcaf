package topicmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Register(t *testing.T) {
	m := NewManager()

	topic := DefineFramework(TopicConfig{
		Name:        "presence.user.online",
		Description: "Published when a user comes online",
	})

	require.NoError(t, m.Register(topic))

	got, ok := m.Lookup("presence.user.online")
	assert.True(t, ok)
	assert.Equal(t, topic, got)
}

func TestManager_RegisterIsIdempotentForSameTopic(t *testing.T) {
	m := NewManager()

	topic := DefineModule(TopicConfig{
		Name:   "chat.channel.event",
		Module: "chat",
	})

	require.NoError(t, m.Register(topic))
	require.NoError(t, m.Register(topic))
	assert.Len(t, m.List(), 1)
}

func TestManager_RejectsDuplicateName(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Register(DefineModule(TopicConfig{Name: "chat.channel.event", Module: "chat"})))
	err := m.Register(DefineModule(TopicConfig{Name: "chat.channel.event", Module: "typing"}))
	assert.Error(t, err)
}

func TestManager_RejectsInvalidDefinitions(t *testing.T) {
	m := NewManager()

	assert.Error(t, m.Register(DefineFramework(TopicConfig{Name: ""})))
	assert.Error(t, m.Register(DefineModule(TopicConfig{Name: "orphan.topic"})))
}

func TestManager_ListByModule(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Register(DefineModule(TopicConfig{Name: "chat.b", Module: "chat"})))
	require.NoError(t, m.Register(DefineModule(TopicConfig{Name: "chat.a", Module: "chat"})))
	require.NoError(t, m.Register(DefineFramework(TopicConfig{Name: "presence.user.online"})))

	chatTopics := m.ListByModule("chat")
	require.Len(t, chatTopics, 2)
	assert.Equal(t, "chat.a", chatTopics[0].Name())
	assert.Equal(t, "chat.b", chatTopics[1].Name())
}
