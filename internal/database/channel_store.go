package database

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/nfrund/relay/internal/domain"
)

type membershipRecord struct {
	User     *models.RecordID `json:"user"`
	Role     string           `json:"role"`
	JoinedAt time.Time        `json:"joinedAt"`
}

type channelRecord struct {
	ID           *models.RecordID   `json:"id,omitempty"`
	Name         string             `json:"name"`
	Visibility   string             `json:"visibility"`
	Members      []membershipRecord `json:"members"`
	LastMessage  *models.RecordID   `json:"lastMessage,omitempty"`
	LastActivity *time.Time         `json:"lastActivity,omitempty"`
}

func (r *channelRecord) toDomain() domain.Channel {
	ch := domain.Channel{
		ID:            recordIDString(r.ID),
		Name:          r.Name,
		Visibility:    domain.Visibility(r.Visibility),
		LastMessageID: recordIDString(r.LastMessage),
	}
	if r.LastActivity != nil {
		ch.LastActivity = *r.LastActivity
	}
	for _, m := range r.Members {
		ch.Members = append(ch.Members, domain.Membership{
			UserID:   recordIDString(m.User),
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}
	return ch
}

// ChannelStore implements domain.ChannelStore on SurrealDB.
type ChannelStore struct {
	db *surrealdb.DB
}

// NewChannelStore creates a channel store over the given connection.
func NewChannelStore(db *surrealdb.DB) *ChannelStore {
	return &ChannelStore{db: db}
}

// Get returns the channel or domain.ErrChannelNotFound.
func (s *ChannelStore) Get(ctx context.Context, id string) (*domain.Channel, error) {
	if id == "" {
		return nil, NewDBError(ErrInvalidInput, "id cannot be empty")
	}

	query := "SELECT * FROM type::thing($id)"
	record, err := QueryOne[channelRecord](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return nil, NewDBError(err, "select operation failed").WithQuery(query)
	}
	if record == nil {
		return nil, domain.ErrChannelNotFound
	}

	ch := record.toDomain()
	return &ch, nil
}

// VisibleTo returns every public channel plus every private channel where the
// user holds an explicit membership.
func (s *ChannelStore) VisibleTo(ctx context.Context, userID string) ([]domain.Channel, error) {
	query := `
		SELECT * FROM channel
		WHERE visibility = 'public'
		   OR members[WHERE user = type::thing($user)] != []
		ORDER BY lastActivity DESC
	`
	records, err := Query[channelRecord](ctx, s.db, query, map[string]any{"user": userID})
	if err != nil {
		return nil, NewDBError(err, "failed to list visible channels").WithQuery(query)
	}

	channels := make([]domain.Channel, 0, len(records))
	for i := range records {
		channels = append(channels, records[i].toDomain())
	}
	return channels, nil
}

// TouchActivity updates the channel's last-message pointer and last-activity
// timestamp after a successful send.
func (s *ChannelStore) TouchActivity(ctx context.Context, channelID, messageID string, at time.Time) error {
	query := `
		UPDATE type::thing($id) SET
			lastMessage = type::thing($message),
			lastActivity = $at
	`
	err := Execute(ctx, s.db, query, map[string]any{
		"id":      channelID,
		"message": messageID,
		"at":      at,
	})
	if err != nil {
		return NewDBError(err, "failed to touch channel activity").WithQuery(query)
	}
	return nil
}
