package database

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/nfrund/relay/internal/domain"
)

// userRecord is the stored shape of a user. The driver hands record links
// back as record identifiers, so the database layer keeps its own struct and
// converts at the boundary.
type userRecord struct {
	ID          *models.RecordID `json:"id,omitempty"`
	DisplayName string           `json:"displayName"`
	Avatar      string           `json:"avatar,omitempty"`
}

func (r *userRecord) toDomain() *domain.User {
	return &domain.User{
		ID:          recordIDString(r.ID),
		DisplayName: r.DisplayName,
		Avatar:      r.Avatar,
	}
}

// UserStore implements domain.UserRepository on SurrealDB. Token validation
// is delegated to the database's own authentication, so the messaging core
// never interprets credentials itself.
type UserStore struct {
	db *surrealdb.DB
}

// NewUserStore creates a user repository over the given connection.
func NewUserStore(db *surrealdb.DB) *UserStore {
	return &UserStore{db: db}
}

// Authenticate validates a session token and returns the associated user.
func (s *UserStore) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if err := s.db.Authenticate(ctx, token); err != nil {
		return nil, domain.ErrAuthenticationFailed
	}

	user, err := QueryOne[userRecord](ctx, s.db, "SELECT * FROM $auth", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrAuthenticationFailed
	}

	return user.toDomain(), nil
}

// Get fetches a user's display metadata by ID.
func (s *UserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, NewDBError(ErrInvalidInput, "id cannot be empty")
	}

	query := "SELECT * FROM type::thing($id)"
	user, err := QueryOne[userRecord](ctx, s.db, query, map[string]any{"id": id})
	if err != nil {
		return nil, NewDBError(err, "select operation failed").WithQuery(query)
	}
	if user == nil {
		return nil, NewDBError(ErrNotFound, "user not found")
	}

	return user.toDomain(), nil
}
