package rbac

import (
	"log/slog"
	"net/http"

	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
)

// DecisionObserver records guard outcomes, typically as metrics.
type DecisionObserver interface {
	ObserveDecision(decision string)
}

// Middleware wires the route guard into HTTP handlers.
type Middleware struct {
	Routes   *RouteTable
	Stores   session.Provider
	Logger   *slog.Logger
	Observer DecisionObserver
}

// Guard evaluates every request against the route table. Paths missing from
// the table pass through untouched.
func (m Middleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		spec, ok := m.Routes.Lookup(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		m.enforce(w, r, spec, next)
	})
}

// RequireRole restricts a handler to one role regardless of the table.
func (m Middleware) RequireRole(role roles.ID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.enforce(w, r, ProtectedRoute(r.URL.Path, role), next)
		})
	}
}

func (m Middleware) enforce(w http.ResponseWriter, r *http.Request, spec RouteSpec, next http.Handler) {
	var state session.State
	if !spec.Public() {
		state, _ = m.Stores(r).Get()
	}
	decision := Evaluate(state, spec)
	if m.Observer != nil {
		m.Observer.ObserveDecision(decision.String())
	}
	if decision == Allowed {
		next.ServeHTTP(w, r)
		return
	}
	if m.Logger != nil {
		m.Logger.Debug("route guard redirect",
			slog.String("path", r.URL.Path),
			slog.String("decision", decision.String()),
			slog.String("role", string(state.Principal.Role)),
		)
	}
	http.Redirect(w, r, RedirectTarget(decision), http.StatusSeeOther)
}
