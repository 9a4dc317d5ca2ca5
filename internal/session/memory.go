package session

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MemoryStore keeps the state in process memory using the same two-key
// layout as SessionStore.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	logger *slog.Logger
	check  CredentialCheck
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string), logger: slog.Default()}
}

// WithCredentialCheck behaves like SessionStore.WithCredentialCheck.
func (m *MemoryStore) WithCredentialCheck(check CredentialCheck) *MemoryStore {
	m.check = check
	return m
}

// Set implements Store.
func (m *MemoryStore) Set(p Principal, c Credential) error {
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[UserKey] = string(data)
	m.values[TokenKey] = string(c)
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get() (State, bool) {
	m.mu.Lock()
	rawUser, rawToken := m.values[UserKey], m.values[TokenKey]
	m.mu.Unlock()
	state, ok := decode(rawUser, rawToken, m.logger)
	if ok && !credentialUsable(state, m.check, m.logger) {
		m.Clear()
		return State{}, false
	}
	return state, ok
}

// Clear implements Store.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, UserKey)
	delete(m.values, TokenKey)
}

// Raw overwrites a persisted key directly, bypassing validation.
func (m *MemoryStore) Raw(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

var _ Store = (*MemoryStore)(nil)
