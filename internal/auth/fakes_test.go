package auth_test

import (
	"context"
	"sync"

	"github.com/schoolprogress/schoolprogress/internal/auth"
	"github.com/schoolprogress/schoolprogress/internal/session"
)

type fakeAuthenticator struct {
	principal  session.Principal
	credential session.Credential
	err        error
	calls      int
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, creds auth.Credentials) (session.Principal, session.Credential, error) {
	f.calls++
	if f.err != nil {
		return session.Principal{}, "", f.err
	}
	return f.principal, f.credential, nil
}

type revokingAuthenticator struct {
	fakeAuthenticator
	revoked []session.Credential
	err     error
}

func (r *revokingAuthenticator) Revoke(ctx context.Context, c session.Credential) error {
	r.revoked = append(r.revoked, c)
	return r.err
}

type recordingSessions struct {
	mu      sync.Mutex
	created []auth.LoginRecord
	deleted []string
}

func (r *recordingSessions) CreateSession(ctx context.Context, rec auth.LoginRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, rec)
	return nil
}

func (r *recordingSessions) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

type countingObserver struct {
	outcomes map[string]int
}

func (c *countingObserver) ObserveLogin(outcome string) {
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}
