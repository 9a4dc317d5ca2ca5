package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/schoolprogress/schoolprogress/internal/auth"
	"github.com/schoolprogress/schoolprogress/internal/layout"
	"github.com/schoolprogress/schoolprogress/internal/observability"
	"github.com/schoolprogress/schoolprogress/internal/rbac"
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
	"github.com/schoolprogress/schoolprogress/internal/view"
	"github.com/schoolprogress/schoolprogress/jobs"
	"github.com/schoolprogress/schoolprogress/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Registry       *roles.Registry
	AuthHandler    *auth.Handler
	AuthService    layout.Sessions
	RBACMiddleware rbac.Middleware
	Stores         session.Provider
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	registry := params.Registry
	if registry == nil {
		registry = roles.Default()
	}
	stores := params.Stores
	if stores == nil {
		stores = session.RequestProvider(params.Logger, nil)
	}

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.RBACMiddleware.Routes != nil {
		r.Use(params.RBACMiddleware.Guard)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	renderPublic := func(w http.ResponseWriter, r *http.Request, page, title string) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(sess)
		data := view.TemplateData{
			Title:       title,
			CSRFToken:   csrfToken,
			Flash:       shared.FlashFromContext(r.Context()),
			CurrentPath: r.URL.Path,
		}
		if err := params.Templates.Render(w, page, data); err != nil {
			params.Logger.Error("render page", slog.String("page", page), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}

	// Signed-in visitors are forwarded to their own panel.
	r.Get(roles.LandingPath, func(w http.ResponseWriter, r *http.Request) {
		if state, ok := stores(r).Get(); ok {
			http.Redirect(w, r, registry.LandingPathFor(state.Principal.Role), http.StatusSeeOther)
			return
		}
		renderPublic(w, r, "pages/landing.html", "Welcome")
	})

	r.Get(roles.InstallPath, func(w http.ResponseWriter, r *http.Request) {
		renderPublic(w, r, "pages/install.html", "Install")
	})

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}

	shellDeps := layout.Deps{
		Logger:    params.Logger,
		Templates: params.Templates,
		Manager:   params.SessionManager,
		CSRF:      params.CSRFManager,
		Sessions:  params.AuthService,
		Stores:    stores,
	}
	r.Method(http.MethodPost, roles.LogoutPath, layout.LogoutHandler(shellDeps))

	for _, cfg := range registry.Configs() {
		shell := layout.NewShell(cfg, shellDeps)
		r.Route(cfg.Prefix, func(r chi.Router) {
			shell.MountRoutes(r)
			if cfg.Role == roles.SuperAdmin && params.JobHandler != nil {
				jobsRouter := r
				if params.RBACMiddleware.Stores != nil {
					jobsRouter = r.With(params.RBACMiddleware.RequireRole(roles.SuperAdmin))
				}
				jobsRouter.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	registerStaticTypes(params.Logger)
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix(roles.StaticPath, http.FileServer(http.FS(staticFS)))
		r.Handle(roles.StaticPath+"*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in the browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
