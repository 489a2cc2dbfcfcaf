package topicmgr

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Manager is the central topic registry. Topics are defined at package level
// with DefineFramework/DefineModule and registered once during startup;
// duplicate names are rejected so two components can never claim the same
// topic string.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]RegistryEntry
}

// NewManager creates an empty topic manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]RegistryEntry)}
}

var defaultManager = NewManager()

// Default returns the process-wide manager used by package-level definitions.
func Default() *Manager { return defaultManager }

// DefineFramework creates a new typed topic for framework services.
func DefineFramework(config TopicConfig) Topic {
	return &TypedTopic{
		name:        config.Name,
		description: config.Description,
		example:     config.Example,
		scope:       ScopeFramework,
	}
}

// DefineModule creates a new typed topic for feature modules.
func DefineModule(config TopicConfig) Topic {
	return &TypedTopic{
		name:        config.Name,
		module:      config.Module,
		description: config.Description,
		example:     config.Example,
		scope:       ScopeModule,
	}
}

// Register adds a topic to the registry. Registering the same name twice is
// an error unless it is the identical Topic value, which keeps RegisterTopics
// helpers idempotent across packages.
func (m *Manager) Register(topic Topic) error {
	if topic.Name() == "" {
		return fmt.Errorf("topic name must not be empty")
	}
	if topic.Scope() == ScopeModule && topic.Module() == "" {
		return fmt.Errorf("module topic %q must declare an owning module", topic.Name())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[topic.Name()]; ok {
		if existing.Topic == topic {
			return nil
		}
		return fmt.Errorf("topic %q already registered", topic.Name())
	}

	m.entries[topic.Name()] = RegistryEntry{Topic: topic, RegisteredAt: time.Now()}
	return nil
}

// MustRegister registers a topic and panics on error. Intended for
// package-level definitions where a failure is a configuration bug.
func (m *Manager) MustRegister(topic Topic) {
	if err := m.Register(topic); err != nil {
		panic("topicmgr: " + err.Error())
	}
}

// Lookup returns the registered topic by name.
func (m *Manager) Lookup(name string) (Topic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[name]
	if !ok {
		return nil, false
	}
	return entry.Topic, true
}

// List returns all registered topics sorted by name.
func (m *Manager) List() []Topic {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topics := make([]Topic, 0, len(m.entries))
	for _, entry := range m.entries {
		topics = append(topics, entry.Topic)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name() < topics[j].Name() })
	return topics
}

// ListByModule returns all topics owned by the given module, sorted by name.
func (m *Manager) ListByModule(module string) []Topic {
	var topics []Topic
	for _, topic := range m.List() {
		if topic.Module() == module {
			topics = append(topics, topic)
		}
	}
	return topics
}
