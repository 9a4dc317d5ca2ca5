package auth

import (
	"context"
	"errors"
	"time"

	"github.com/schoolprogress/schoolprogress/internal/session"
)

var (
	// ErrAuthUnavailable indicates the credential exchange could not be completed.
	ErrAuthUnavailable = errors.New("auth: service unavailable")
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("auth: not found")
)

// User is an account known to the local authenticator.
type User struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credentials are submitted on the login form.
type Credentials struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=128"`
}

// LoginRecord is the audit row written for every successful login.
type LoginRecord struct {
	SessionID   string
	PrincipalID string
	Role        string
	ExpiresAt   time.Time
	IP          string
	UserAgent   string
}

// Authenticator exchanges credentials for a principal and its bearer credential.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (session.Principal, session.Credential, error)
}

// Revoker is implemented by authenticators that can invalidate a credential.
type Revoker interface {
	Revoke(ctx context.Context, credential session.Credential) error
}
