// Package session holds the authenticated principal of a browser session and
// the opaque credential that proves it.
package session

import (
	"errors"
	"strings"

	"github.com/schoolprogress/schoolprogress/internal/roles"
)

var (
	// ErrInvalidPrincipal is returned when a principal lacks an id or a known role.
	ErrInvalidPrincipal = errors.New("session: invalid principal")
	// ErrEmptyCredential is returned when storing a blank credential.
	ErrEmptyCredential = errors.New("session: empty credential")
)

// Principal is the authenticated identity of the current user.
type Principal struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Role        roles.ID `json:"role"`
}

// Validate checks the principal carries an id and a known role.
func (p Principal) Validate() error {
	if strings.TrimSpace(p.ID) == "" || !p.Role.Valid() {
		return ErrInvalidPrincipal
	}
	return nil
}

// Credential is the bearer token attached to outbound requests.
type Credential string

// State is a snapshot of the store. The zero value means no session.
type State struct {
	Principal  Principal
	Credential Credential
}

// Authenticated reports whether the state holds a usable principal and credential.
func (s State) Authenticated() bool {
	return s.Credential != "" && s.Principal.Validate() == nil
}
