// Package chat implements the message lifecycle: sending, editing, and
// soft-deleting channel messages, with the resulting broadcasts.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/membership"
	"github.com/nfrund/relay/internal/pubsub"
)

// TypingNotifier is the slice of the typing registry the lifecycle needs:
// clearing the author's typing state when a send lands.
type TypingNotifier interface {
	ClearOnSend(ctx context.Context, channelID, userID string)
}

// Service owns message writes. Every mutation is authorized through the
// membership resolver, persisted first, and broadcast only after persistence
// succeeds, so subscribers never see an event for a record that does not
// exist.
type Service struct {
	messages  domain.MessageStore
	channels  domain.ChannelStore
	users     domain.UserRepository
	resolver  *membership.Resolver
	publisher pubsub.Publisher
	typing    TypingNotifier
	logger    *slog.Logger
	now       func() time.Time

	// sendMu guards sends; each channel gets its own lock so writes to one
	// channel serialize without blocking other channels. Edits and deletes
	// take the same lock so their broadcasts cannot overtake a send's.
	sendMu sync.Mutex
	sends  map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the message lifecycle over its stores and the event bus.
func NewService(
	messages domain.MessageStore,
	channels domain.ChannelStore,
	users domain.UserRepository,
	resolver *membership.Resolver,
	publisher pubsub.Publisher,
	typing TypingNotifier,
	opts ...Option,
) *Service {
	s := &Service{
		messages:  messages,
		channels:  channels,
		users:     users,
		resolver:  resolver,
		publisher: publisher,
		typing:    typing,
		logger:    slog.Default().With("service", "chat"),
		now:       time.Now,
		sends:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send persists a new message from authorID in channelID and broadcasts it
// to the channel. Sends within one channel are serialized so the persisted
// order and the broadcast order agree.
func (s *Service) Send(ctx context.Context, channelID, authorID, content, replyTo string) (*domain.Message, error) {
	ok, err := s.resolver.CanWrite(ctx, channelID, authorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAccessDenied
	}

	lock := s.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	msg := &domain.Message{
		ID:        "message:" + uuid.NewString(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		Kind:      domain.MessageKindText,
		ReplyTo:   replyTo,
		CreatedAt: s.now().UTC(),
	}

	stored, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	if err := s.channels.TouchActivity(ctx, channelID, stored.ID, stored.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to update channel activity: %w", err)
	}

	s.attachAuthor(ctx, stored)
	s.typing.ClearOnSend(ctx, channelID, authorID)
	s.broadcast(ctx, events.EventNewMessage, channelID, stored)

	return stored, nil
}

// Edit replaces the content of an existing message. Only the author may edit,
// and a deleted message is no longer editable; its tombstone is terminal.
func (s *Service) Edit(ctx context.Context, messageID, editorID, content string) (*domain.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	// Serialize with sends on the same channel so the edit broadcast cannot
	// overtake the new-message broadcast for this message.
	lock := s.channelLock(msg.ChannelID)
	lock.Lock()
	defer lock.Unlock()

	msg, err = s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Deleted {
		return nil, domain.ErrMessageNotFound
	}
	if msg.AuthorID != editorID {
		return nil, domain.ErrAccessDenied
	}

	editedAt := s.now().UTC()
	msg.Content = content
	msg.Edited = true
	msg.EditedAt = &editedAt

	stored, err := s.messages.Update(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist edit: %w", err)
	}

	s.attachAuthor(ctx, stored)
	s.broadcast(ctx, events.EventMessageEdited, stored.ChannelID, stored)

	return stored, nil
}

// Delete tombstones a message: the stored record keeps its content, only the
// deleted flag and timestamp change, and the broadcast carries no content. The
// author may delete their own messages; moderators and admins of the channel
// may delete anyone's. Deleting an already-deleted message succeeds without a
// second broadcast.
func (s *Service) Delete(ctx context.Context, messageID, actorID string) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}

	lock := s.channelLock(msg.ChannelID)
	lock.Lock()
	defer lock.Unlock()

	msg, err = s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.Deleted {
		return nil
	}

	if msg.AuthorID != actorID {
		role, ok, err := s.resolver.RoleOf(ctx, msg.ChannelID, actorID)
		if err != nil {
			return err
		}
		if !ok || !role.AtLeast(domain.RoleModerator) {
			return domain.ErrAccessDenied
		}
	}

	deletedAt := s.now().UTC()
	msg.Deleted = true
	msg.DeletedAt = &deletedAt

	if _, err := s.messages.Update(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist deletion: %w", err)
	}

	s.broadcast(ctx, events.EventMessageDeleted, msg.ChannelID, events.MessageDeletedPayload{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
	})

	return nil
}

// History returns a page of the channel's surviving messages, oldest first,
// with author metadata attached, plus the total count.
func (s *Service) History(ctx context.Context, channelID, userID string, limit, page int) ([]domain.Message, int, error) {
	ok, err := s.resolver.CanRead(ctx, channelID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, domain.ErrAccessDenied
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}

	messages, total, err := s.messages.History(ctx, channelID, limit, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load history: %w", err)
	}

	authors := make(map[string]*domain.User)
	for i := range messages {
		author, cached := authors[messages[i].AuthorID]
		if !cached {
			author, err = s.users.Get(ctx, messages[i].AuthorID)
			if err != nil {
				s.logger.Warn("Failed to resolve message author", "user_id", messages[i].AuthorID, "error", err)
			}
			authors[messages[i].AuthorID] = author
		}
		messages[i].Author = author
	}

	return messages, total, nil
}

func (s *Service) channelLock(channelID string) *sync.Mutex {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	lock, ok := s.sends[channelID]
	if !ok {
		lock = &sync.Mutex{}
		s.sends[channelID] = lock
	}
	return lock
}

// attachAuthor resolves the sender's display metadata for broadcast. A lookup
// failure degrades to a message without author details rather than blocking
// delivery.
func (s *Service) attachAuthor(ctx context.Context, msg *domain.Message) {
	author, err := s.users.Get(ctx, msg.AuthorID)
	if err != nil {
		s.logger.Warn("Failed to resolve message author", "user_id", msg.AuthorID, "error", err)
		return
	}
	msg.Author = author
}

func (s *Service) broadcast(ctx context.Context, event, channelID string, payload any) {
	if err := events.PublishChannelEvent(ctx, s.publisher, event, channelID, "", payload); err != nil {
		s.logger.Error("Failed to broadcast message event", "event", event, "channel_id", channelID, "error", err)
	}
}
