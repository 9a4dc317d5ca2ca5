// Package layout renders the per-role panels and re-checks the session on
// every request into a role subtree.
package layout

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/schoolprogress/schoolprogress/internal/rbac"
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
	"github.com/schoolprogress/schoolprogress/internal/view"
)

// Sessions is the part of the auth service used to end a session.
type Sessions interface {
	Logout(ctx context.Context, store session.Store) error
	RemoveSession(ctx context.Context, id string) error
}

// Deps groups the collaborators shared by every shell.
type Deps struct {
	Logger    *slog.Logger
	Templates *view.Engine
	Manager   *shared.SessionManager
	CSRF      *shared.CSRFManager
	Sessions  Sessions
	Stores    session.Provider
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Shell is the panel of one role.
type Shell struct {
	cfg  roles.Config
	deps Deps
}

// NewShell constructs the shell for cfg.
func NewShell(cfg roles.Config, deps Deps) *Shell {
	if deps.Stores == nil {
		deps.Stores = session.RequestProvider(deps.Logger, nil)
	}
	return &Shell{cfg: cfg, deps: deps}
}

// Config returns the role configuration the shell was built from.
func (s *Shell) Config() roles.Config {
	return s.cfg
}

// MountRoutes registers the dashboard, one page per nav leaf and logout.
func (s *Shell) MountRoutes(r chi.Router) {
	r.Use(s.Mount)
	r.Get("/", s.dashboard)
	for _, leaf := range s.cfg.Leaves() {
		r.Get("/"+leaf.Slug(s.cfg.Prefix), s.section(leaf))
	}
	r.Post("/logout", s.Logout)
}

// Mount validates the session before any page of the shell renders. An
// absent session goes to login, a session of another role to the landing
// page.
func (s *Shell) Mount(next http.Handler) http.Handler {
	spec := rbac.ProtectedRoute(s.cfg.Prefix, s.cfg.Role)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, _ := s.deps.Stores(r).Get()
		decision := rbac.Evaluate(state, spec)
		if decision != rbac.Allowed {
			s.deps.logger().Debug("shell mount rejected",
				slog.String("panel", s.cfg.Panel),
				slog.String("decision", decision.String()),
			)
			http.Redirect(w, r, rbac.RedirectTarget(decision), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithState(r.Context(), state)))
	})
}

// Logout ends the session and returns to the login page.
func (s *Shell) Logout(w http.ResponseWriter, r *http.Request) {
	LogoutHandler(s.deps).ServeHTTP(w, r)
}

func (s *Shell) dashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "pages/dashboard.html", "Dashboard")
}

func (s *Shell) section(item roles.NavItem) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, "pages/section.html", item.Title)
	}
}

func (s *Shell) render(w http.ResponseWriter, r *http.Request, page, title string) {
	state, _ := StateFromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if sess != nil && s.deps.CSRF != nil {
		csrfToken, _ = s.deps.CSRF.EnsureToken(sess)
	}
	principal := state.Principal
	data := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       shared.FlashFromContext(r.Context()),
		CurrentPath: currentPath(r),
		Principal:   &principal,
		Shell:       s.chrome(currentPath(r)),
	}
	if err := s.deps.Templates.Render(w, page, data); err != nil {
		s.deps.logger().Error("render shell page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Shell) chrome(path string) *view.Shell {
	nav := make([]view.NavLink, 0, len(s.cfg.NavItems))
	for _, item := range s.cfg.NavItems {
		nav = append(nav, view.NavLink{Title: item.Title, Path: item.Path, Active: item.Path == path})
	}
	return &view.Shell{Panel: s.cfg.Panel, Home: s.cfg.LandingPath, Nav: nav}
}

func currentPath(r *http.Request) string {
	if r.URL.Path == "/" {
		return r.URL.Path
	}
	return strings.TrimSuffix(r.URL.Path, "/")
}
