package rbac

import "github.com/schoolprogress/schoolprogress/internal/roles"

// Decision is the outcome of evaluating a route for a session.
type Decision int

const (
	Unchecked Decision = iota
	Allowed
	DeniedUnauthenticated
	DeniedWrongRole
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedUnauthenticated:
		return "denied_unauthenticated"
	case DeniedWrongRole:
		return "denied_wrong_role"
	default:
		return "unchecked"
	}
}

// RouteSpec declares a navigable path and the roles allowed to reach it.
// A nil RequiredRoles marks the route public.
type RouteSpec struct {
	Path          string
	RequiredRoles []roles.ID
}

// Public reports whether the route needs no session.
func (s RouteSpec) Public() bool {
	return s.RequiredRoles == nil
}

// Permits reports whether role is one of the required roles.
func (s RouteSpec) Permits(role roles.ID) bool {
	for _, r := range s.RequiredRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ProtectedRoute returns a spec restricted to a single role.
func ProtectedRoute(path string, role roles.ID) RouteSpec {
	return RouteSpec{Path: path, RequiredRoles: []roles.ID{role}}
}

// PublicRoute returns a spec reachable by anyone.
func PublicRoute(path string) RouteSpec {
	return RouteSpec{Path: path}
}
