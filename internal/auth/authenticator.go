// Package auth resolves connection credentials to user identities.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nfrund/relay/internal/domain"
)

// Authenticator validates the credential presented on an incoming connection
// against the identity service. There is no anonymous fallback: a missing or
// invalid credential refuses the connection outright.
type Authenticator struct {
	users  domain.UserRepository
	logger *slog.Logger
}

// NewAuthenticator creates an authenticator backed by the user repository.
func NewAuthenticator(users domain.UserRepository) *Authenticator {
	return &Authenticator{
		users:  users,
		logger: slog.Default().With("service", "auth"),
	}
}

// Authenticate extracts the credential from the request and resolves it to a
// user. The token may arrive as a bearer Authorization header or, for browser
// websocket clients that cannot set headers, as a `token` query parameter.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*domain.User, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, domain.ErrAuthenticationFailed
	}

	user, err := a.users.Authenticate(ctx, token)
	if err != nil {
		a.logger.Warn("Authentication rejected", "remote_addr", r.RemoteAddr, "error", err)
		return nil, domain.ErrAuthenticationFailed
	}
	return user, nil
}

// TokenFromRequest returns the raw credential carried by the request, or an
// empty string when none is present. The Authorization header wins over the
// query parameter.
func TokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return r.URL.Query().Get("token")
}
