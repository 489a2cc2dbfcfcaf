package topicmgr

import "time"

// Topic represents a strongly-typed topic identifier with compile-time safety.
type Topic interface {
	// Name returns the unique string identifier for this topic.
	Name() string

	// Module returns the module that owns this topic (empty for framework topics).
	Module() string

	// Description returns human-readable documentation.
	Description() string

	// Example returns a usage example.
	Example() string

	// Scope returns whether this is a framework or module topic.
	Scope() TopicScope
}

// TopicScope defines whether a topic belongs to framework or module level.
type TopicScope string

const (
	ScopeFramework TopicScope = "framework" // Core services (presence, websocket bridge)
	ScopeModule    TopicScope = "module"    // Feature-owned topics (chat, typing)
)

// TopicConfig holds configuration for creating a new topic.
type TopicConfig struct {
	Name        string     `json:"name"`
	Module      string     `json:"module"`
	Scope       TopicScope `json:"scope"`
	Description string     `json:"description"`
	Example     string     `json:"example"`
}

// TypedTopic is the standard Topic implementation created by Define*.
type TypedTopic struct {
	name        string
	module      string
	description string
	example     string
	scope       TopicScope
}

var _ Topic = (*TypedTopic)(nil)

func (t *TypedTopic) Name() string        { return t.name }
func (t *TypedTopic) Module() string      { return t.module }
func (t *TypedTopic) Description() string { return t.description }
func (t *TypedTopic) Example() string     { return t.example }
func (t *TypedTopic) Scope() TopicScope   { return t.scope }

// String returns the topic name for easy debugging.
func (t *TypedTopic) String() string { return t.name }

// RegistryEntry is a registered topic plus registration metadata.
type RegistryEntry struct {
	Topic        Topic     `json:"topic"`
	RegisteredAt time.Time `json:"registered_at"`
}
