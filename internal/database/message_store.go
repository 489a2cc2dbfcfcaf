package database

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/nfrund/relay/internal/domain"
)

type messageRecord struct {
	ID        *models.RecordID `json:"id,omitempty"`
	Channel   *models.RecordID `json:"channel"`
	Sender    *models.RecordID `json:"sender"`
	Content   string           `json:"content"`
	Kind      string           `json:"kind"`
	ReplyTo   *models.RecordID `json:"replyTo,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	Edited    bool             `json:"edited"`
	EditedAt  *time.Time       `json:"editedAt,omitempty"`
	Deleted   bool             `json:"deleted"`
	DeletedAt *time.Time       `json:"deletedAt,omitempty"`
}

func messageToRecord(msg *domain.Message) *messageRecord {
	rec := &messageRecord{
		ID:        recordID(msg.ID),
		Channel:   recordID(msg.ChannelID),
		Sender:    recordID(msg.AuthorID),
		Content:   msg.Content,
		Kind:      string(msg.Kind),
		CreatedAt: msg.CreatedAt,
		Edited:    msg.Edited,
		EditedAt:  msg.EditedAt,
		Deleted:   msg.Deleted,
		DeletedAt: msg.DeletedAt,
	}
	if msg.ReplyTo != "" {
		rec.ReplyTo = recordID(msg.ReplyTo)
	}
	return rec
}

func (r *messageRecord) toDomain() *domain.Message {
	return &domain.Message{
		ID:        recordIDString(r.ID),
		ChannelID: recordIDString(r.Channel),
		AuthorID:  recordIDString(r.Sender),
		Content:   r.Content,
		Kind:      domain.MessageKind(r.Kind),
		ReplyTo:   recordIDString(r.ReplyTo),
		CreatedAt: r.CreatedAt,
		Edited:    r.Edited,
		EditedAt:  r.EditedAt,
		Deleted:   r.Deleted,
		DeletedAt: r.DeletedAt,
	}
}

type countResult struct {
	Total int `json:"total"`
}

// MessageStore implements domain.MessageStore on SurrealDB. Records are only
// ever created and amended; deletion is a flag, never a removed row.
type MessageStore struct {
	db *surrealdb.DB
}

// NewMessageStore creates a message store over the given connection.
func NewMessageStore(db *surrealdb.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Create persists a new message and returns the canonical stored record.
func (s *MessageStore) Create(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if msg == nil {
		return nil, NewDBError(ErrInvalidInput, "message cannot be nil")
	}

	query := "CREATE type::thing($id) CONTENT $data"
	record, err := QueryOne[messageRecord](ctx, s.db, query, map[string]any{
		"id":   msg.ID,
		"data": messageToRecord(msg),
	})
	if err != nil {
		return nil, NewDBError(err, "create operation failed").WithQuery(query)
	}
	if record == nil {
		return nil, NewDBError(ErrQueryFailed, "create returned no record")
	}

	return record.toDomain(), nil
}

// Get returns the message or domain.ErrMessageNotFound.
func (s *MessageStore) Get(ctx context.Context, id string) (*domain.Message, error) {
	if id == "" {
		return nil, NewDBError(ErrInvalidInput, "id cannot be empty")
	}

	query := "SELECT * FROM type::thing($id)"
	record, err := QueryOne[messageRecord](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return nil, NewDBError(err, "select operation failed").WithQuery(query)
	}
	if record == nil {
		return nil, domain.ErrMessageNotFound
	}

	return record.toDomain(), nil
}

// Update persists the mutable fields of an existing message.
func (s *MessageStore) Update(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	if msg == nil || msg.ID == "" {
		return nil, NewDBError(ErrInvalidInput, "message ID is required for update")
	}

	query := `
		UPDATE type::thing($id) SET
			content = $content,
			edited = $edited,
			editedAt = $edited_at,
			deleted = $deleted,
			deletedAt = $deleted_at
	`
	record, err := QueryOne[messageRecord](ctx, s.db, query, map[string]any{
		"id":         msg.ID,
		"content":    msg.Content,
		"edited":     msg.Edited,
		"edited_at":  msg.EditedAt,
		"deleted":    msg.Deleted,
		"deleted_at": msg.DeletedAt,
	})
	if err != nil {
		return nil, NewDBError(err, "update operation failed").WithQuery(query)
	}
	if record == nil {
		return nil, domain.ErrMessageNotFound
	}

	return record.toDomain(), nil
}

// History returns a page of non-deleted messages for the channel, oldest
// first, plus the total count of surviving messages.
func (s *MessageStore) History(ctx context.Context, channelID string, limit, page int) ([]domain.Message, int, error) {
	if channelID == "" {
		return nil, 0, NewDBError(ErrInvalidInput, "channel ID cannot be empty")
	}
	if limit <= 0 {
		return nil, 0, NewDBError(ErrInvalidInput, "limit must be positive")
	}
	if page < 1 {
		return nil, 0, NewDBError(ErrInvalidInput, "page starts at 1")
	}

	query := `
		SELECT * FROM message
		WHERE channel = type::thing($channel) AND deleted = false
		ORDER BY createdAt ASC
		LIMIT $limit START $start
	`
	records, err := Query[messageRecord](ctx, s.db, query, map[string]any{
		"channel": channelID,
		"limit":   limit,
		"start":   (page - 1) * limit,
	})
	if err != nil {
		return nil, 0, NewDBError(err, "failed to load message history").WithQuery(query)
	}

	countQuery := `
		SELECT count() AS total FROM message
		WHERE channel = type::thing($channel) AND deleted = false
		GROUP ALL
	`
	count, err := QueryOne[countResult](ctx, s.db, countQuery, map[string]any{"channel": channelID})
	if err != nil {
		return nil, 0, NewDBError(err, "failed to count message history").WithQuery(countQuery)
	}

	total := 0
	if count != nil {
		total = count.Total
	}

	messages := make([]domain.Message, 0, len(records))
	for i := range records {
		messages = append(messages, *records[i].toDomain())
	}
	return messages, total, nil
}
