package auth

import (
	"context"

	"github.com/schoolprogress/schoolprogress/internal/session"
)

// Service wraps the login and logout flows.
type Service struct {
	authenticator Authenticator
	sessions      SessionRepository
}

// NewService constructs a new Service. sessions may be nil when no audit
// trail is kept.
func NewService(authenticator Authenticator, sessions SessionRepository) *Service {
	return &Service{authenticator: authenticator, sessions: sessions}
}

// Login exchanges credentials and stores the result. A failed exchange
// leaves the store untouched.
func (s *Service) Login(ctx context.Context, store session.Store, creds Credentials) (session.Principal, error) {
	principal, credential, err := s.authenticator.Authenticate(ctx, creds)
	if err != nil {
		return session.Principal{}, err
	}
	if err := store.Set(principal, credential); err != nil {
		return session.Principal{}, err
	}
	return principal, nil
}

// Logout clears the store. Revocation is best effort: its error is returned
// but the store is cleared regardless. Logging out an empty store is a no-op.
func (s *Service) Logout(ctx context.Context, store session.Store) error {
	state, ok := store.Get()
	store.Clear()
	if !ok {
		return nil
	}
	if revoker, isRevoker := s.authenticator.(Revoker); isRevoker {
		return revoker.Revoke(ctx, state.Credential)
	}
	return nil
}

// RegisterSession persists the login record.
func (s *Service) RegisterSession(ctx context.Context, rec LoginRecord) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.CreateSession(ctx, rec)
}

// RemoveSession deletes a login record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if s.sessions == nil || id == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, id)
}
