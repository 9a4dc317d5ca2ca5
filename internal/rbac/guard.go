package rbac

import (
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
)

// Evaluate decides whether state may reach the route. It holds no state of
// its own and must be called again on every navigation.
func Evaluate(state session.State, spec RouteSpec) Decision {
	if spec.Public() {
		return Allowed
	}
	if !state.Authenticated() {
		return DeniedUnauthenticated
	}
	if !spec.Permits(state.Principal.Role) {
		return DeniedWrongRole
	}
	return Allowed
}

// RedirectTarget returns where a denied visitor is sent, or "" when the
// decision lets the request through.
//
// Wrong-role visitors go to the public landing page, which forwards an
// authenticated principal to its own dashboard.
func RedirectTarget(d Decision) string {
	switch d {
	case DeniedUnauthenticated:
		return roles.LoginPath
	case DeniedWrongRole:
		return roles.LandingPath
	default:
		return ""
	}
}
