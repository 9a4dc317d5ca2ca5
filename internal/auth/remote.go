package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/schoolprogress/schoolprogress/internal/platform/backend"
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
)

type remoteUser struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type remoteLogin struct {
	User  remoteUser `json:"user"`
	Token string     `json:"token"`
}

// RemoteAuthenticator delegates the credential exchange to the school API.
type RemoteAuthenticator struct {
	client *backend.Client
}

// NewRemoteAuthenticator constructs a RemoteAuthenticator.
func NewRemoteAuthenticator(client *backend.Client) *RemoteAuthenticator {
	return &RemoteAuthenticator{client: client}
}

// Authenticate implements Authenticator.
func (a *RemoteAuthenticator) Authenticate(ctx context.Context, creds Credentials) (session.Principal, session.Credential, error) {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	var out remoteLogin
	if err := a.client.Do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Rejected() {
			return session.Principal{}, "", fmt.Errorf("%w: %w", shared.ErrInvalidCredentials, err)
		}
		return session.Principal{}, "", fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}

	role, err := roles.Parse(out.User.Role)
	if err != nil {
		return session.Principal{}, "", fmt.Errorf("auth: backend principal %q: %w", out.User.ID, err)
	}
	principal := session.Principal{ID: out.User.ID, DisplayName: out.User.FullName, Role: role}
	if err := principal.Validate(); err != nil {
		return session.Principal{}, "", fmt.Errorf("auth: backend principal: %w", err)
	}
	if out.Token == "" {
		return session.Principal{}, "", fmt.Errorf("auth: backend principal %q: %w", out.User.ID, session.ErrEmptyCredential)
	}
	return principal, session.Credential(out.Token), nil
}

// Revoke notifies the API that the credential is no longer in use.
func (a *RemoteAuthenticator) Revoke(ctx context.Context, credential session.Credential) error {
	return a.client.Do(ctx, http.MethodPost, "/auth/logout", string(credential), nil, nil)
}

var (
	_ Authenticator = (*RemoteAuthenticator)(nil)
	_ Revoker       = (*RemoteAuthenticator)(nil)
)
