package session

import (
	"log/slog"
	"net/http"

	"github.com/schoolprogress/schoolprogress/internal/shared"
)

// Provider resolves the store bound to a request.
type Provider func(r *http.Request) Store

// RequestProvider returns a Provider reading the cookie session placed in the
// request context by the session middleware. Requests without one get an
// empty store. check may be nil.
func RequestProvider(logger *slog.Logger, check CredentialCheck) Provider {
	return func(r *http.Request) Store {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			return NewMemoryStore()
		}
		return NewSessionStore(sess, logger).WithCredentialCheck(check)
	}
}

// StaticProvider always returns the same store.
func StaticProvider(store Store) Provider {
	return func(*http.Request) Store {
		return store
	}
}
