package rbac

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/schoolprogress/schoolprogress/internal/roles"
)

// RouteTable is the fixed path to RouteSpec mapping of the application.
type RouteTable struct {
	exact    map[string]RouteSpec
	subtrees []RouteSpec
}

// NewRouteTable derives the table from the role registry.
func NewRouteTable(reg *roles.Registry) *RouteTable {
	t := &RouteTable{exact: make(map[string]RouteSpec)}
	for _, p := range roles.PublicPaths {
		t.exact[p] = PublicRoute(p)
	}
	for _, cfg := range reg.Configs() {
		t.subtrees = append(t.subtrees, ProtectedRoute(cfg.Prefix, cfg.Role))
		for _, item := range cfg.NavItems {
			t.exact[item.Path] = ProtectedRoute(item.Path, cfg.Role)
		}
	}
	// Longest prefix first so nested subtrees win.
	sort.Slice(t.subtrees, func(i, j int) bool {
		return len(t.subtrees[i].Path) > len(t.subtrees[j].Path)
	})
	return t
}

// Lookup returns the route spec governing path.
func (t *RouteTable) Lookup(path string) (RouteSpec, bool) {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if spec, ok := t.exact[path]; ok {
		return spec, true
	}
	for _, spec := range t.subtrees {
		if roles.UnderPrefix(spec.Path, path) {
			return spec, true
		}
	}
	if strings.HasPrefix(path, roles.StaticPath) {
		return PublicRoute(roles.StaticPath), true
	}
	return RouteSpec{}, false
}

// Specs returns every exact entry sorted by path.
func (t *RouteTable) Specs() []RouteSpec {
	out := make([]RouteSpec, 0, len(t.exact))
	for _, spec := range t.exact {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Validate checks that every protected entry names exactly one role and
// agrees with the subtree that contains it.
func (t *RouteTable) Validate() error {
	var errs []error
	for _, spec := range append(t.Specs(), t.subtrees...) {
		if spec.Public() {
			continue
		}
		if len(spec.RequiredRoles) != 1 {
			errs = append(errs, fmt.Errorf("rbac: %s must require exactly one role", spec.Path))
			continue
		}
		for _, tree := range t.subtrees {
			if roles.UnderPrefix(tree.Path, spec.Path) && tree.RequiredRoles[0] != spec.RequiredRoles[0] {
				errs = append(errs, fmt.Errorf("rbac: %s conflicts with subtree %s", spec.Path, tree.Path))
			}
		}
	}
	return errors.Join(errs...)
}
