package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
)

// UserFinder loads accounts by email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// LocalAuthenticator verifies passwords against the users table and issues
// its own credentials.
type LocalAuthenticator struct {
	users  UserFinder
	tokens *TokenIssuer
}

// NewLocalAuthenticator constructs a LocalAuthenticator.
func NewLocalAuthenticator(users UserFinder, tokens *TokenIssuer) *LocalAuthenticator {
	return &LocalAuthenticator{users: users, tokens: tokens}
}

// Authenticate implements Authenticator.
func (a *LocalAuthenticator) Authenticate(ctx context.Context, creds Credentials) (session.Principal, session.Credential, error) {
	user, err := a.users.FindByEmail(ctx, strings.TrimSpace(creds.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return session.Principal{}, "", shared.ErrInvalidCredentials
		}
		return session.Principal{}, "", fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}
	if !user.IsActive {
		return session.Principal{}, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return session.Principal{}, "", shared.ErrInvalidCredentials
	}
	role, err := roles.Parse(user.Role)
	if err != nil {
		return session.Principal{}, "", fmt.Errorf("auth: account %s: %w", user.ID, err)
	}
	principal := session.Principal{ID: user.ID, DisplayName: user.FullName, Role: role}
	credential, err := a.tokens.Issue(principal)
	if err != nil {
		return session.Principal{}, "", err
	}
	return principal, credential, nil
}

var _ Authenticator = (*LocalAuthenticator)(nil)
