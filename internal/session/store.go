package session

import (
	"encoding/json"
	"log/slog"

	"github.com/schoolprogress/schoolprogress/internal/shared"
)

// Well-known keys under which the cookie session persists the state.
const (
	UserKey  = "user"
	TokenKey = "token"
)

// Store is the single source of truth for who is logged in.
type Store interface {
	// Set replaces any prior state. Invalid input leaves the store untouched.
	Set(p Principal, c Credential) error
	// Get returns the current state, or false when absent or unreadable.
	Get() (State, bool)
	// Clear removes principal and credential together.
	Clear()
}

// CredentialCheck reports whether a stored credential is still usable for
// the principal it was stored with. A failing check makes the state absent.
type CredentialCheck func(p Principal, c Credential) error

// SessionStore persists the state in a cookie session.
type SessionStore struct {
	sess   *shared.Session
	logger *slog.Logger
	check  CredentialCheck
}

// NewSessionStore binds a store to a loaded cookie session.
func NewSessionStore(sess *shared.Session, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{sess: sess, logger: logger}
}

// WithCredentialCheck makes Get discard, and clear, state whose credential
// fails check. A nil check accepts every credential.
func (s *SessionStore) WithCredentialCheck(check CredentialCheck) *SessionStore {
	s.check = check
	return s
}

// Set implements Store.
func (s *SessionStore) Set(p Principal, c Credential) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if c == "" {
		return ErrEmptyCredential
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.sess.SetMany(map[string]string{UserKey: string(data), TokenKey: string(c)})
	return nil
}

// Get implements Store.
func (s *SessionStore) Get() (State, bool) {
	state, ok := decode(s.sess.Get(UserKey), s.sess.Get(TokenKey), s.logger)
	if ok && !credentialUsable(state, s.check, s.logger) {
		s.Clear()
		return State{}, false
	}
	return state, ok
}

// Clear implements Store.
func (s *SessionStore) Clear() {
	s.sess.Delete(UserKey, TokenKey)
}

func decode(rawUser, rawToken string, logger *slog.Logger) (State, bool) {
	if rawUser == "" || rawToken == "" {
		return State{}, false
	}
	var p Principal
	if err := json.Unmarshal([]byte(rawUser), &p); err != nil {
		logger.Warn("discarding unreadable session principal", slog.Any("error", err))
		return State{}, false
	}
	if err := p.Validate(); err != nil {
		logger.Warn("discarding invalid session principal", slog.String("role", string(p.Role)))
		return State{}, false
	}
	return State{Principal: p, Credential: Credential(rawToken)}, true
}

func credentialUsable(state State, check CredentialCheck, logger *slog.Logger) bool {
	if check == nil {
		return true
	}
	if err := check(state.Principal, state.Credential); err != nil {
		logger.Warn("discarding unusable session credential",
			slog.String("principal", state.Principal.ID),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

var _ Store = (*SessionStore)(nil)
