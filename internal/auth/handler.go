package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/schoolprogress/schoolprogress/internal/platform/backend"
	"github.com/schoolprogress/schoolprogress/internal/platform/httpx"
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
	"github.com/schoolprogress/schoolprogress/internal/view"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgUnavailable        = "Sign in is temporarily unavailable, please try again"
)

// LoginObserver records login outcomes.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	registry       *roles.Registry
	stores         session.Provider
	observer       LoginObserver
	validator      *validator.Validate
	loginLimit     func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, registry *roles.Registry, observer LoginObserver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = roles.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		registry:       registry,
		stores:         session.RequestProvider(logger, nil),
		observer:       observer,
		validator:      validator.New(),
		loginLimit:     httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

// WithStores replaces the store provider used to read the current state.
func (h *Handler) WithStores(stores session.Provider) *Handler {
	if stores != nil {
		h.stores = stores
	}
	return h
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get(roles.LoginPath, h.showLogin)
	r.With(h.loginLimit).Post(roles.LoginPath, h.handleLogin)
	r.Get("/api/session", h.currentSession)
}

type loginForm struct {
	Email string
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if state, ok := h.stores(r).Get(); ok {
		http.Redirect(w, r, h.registry.LandingPathFor(state.Principal.Role), http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	creds := Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := loginPageData{Form: loginForm{Email: creds.Email}, Errors: make(map[string]string)}
	if err := h.validator.Struct(creds); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				data.Errors[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		} else {
			data.Errors["general"] = msgInvalidCredentials
		}
		h.observeLogin("invalid_input")
		h.renderLogin(w, r, http.StatusBadRequest, data)
		return
	}

	store := session.NewSessionStore(sess, h.logger)
	principal, err := h.service.Login(r.Context(), store, creds)
	if err != nil {
		status := http.StatusBadRequest
		outcome := "rejected"
		data.Errors["general"] = msgInvalidCredentials
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			status = http.StatusServiceUnavailable
			outcome = "unavailable"
			data.Errors["general"] = msgUnavailable
			h.logger.Error("login exchange failed", slog.Any("error", err))
		}
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" && status == http.StatusBadRequest {
			data.Errors["general"] = apiErr.Message
		}
		h.observeLogin(outcome)
		h.renderLogin(w, r, status, data)
		return
	}

	h.sessionManager.Renew(sess)
	h.csrfManager.Rotate(sess)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + principal.DisplayName})

	rec := LoginRecord{
		SessionID:   sess.ID,
		PrincipalID: principal.ID,
		Role:        principal.Role.String(),
		ExpiresAt:   time.Now().Add(h.sessionManager.TTL()),
		IP:          r.RemoteAddr,
		UserAgent:   r.UserAgent(),
	}
	if err := h.service.RegisterSession(r.Context(), rec); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	h.observeLogin("success")
	h.logger.Info("login succeeded",
		slog.String("principal", principal.ID),
		slog.String("role", principal.Role.String()),
	)
	http.Redirect(w, r, h.registry.LandingPathFor(principal.Role), http.StatusSeeOther)
}

type sessionResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Role        roles.ID `json:"role"`
	LandingPath string   `json:"landing_path"`
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	state, ok := h.stores(r).Get()
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		ID:          state.Principal.ID,
		DisplayName: state.Principal.DisplayName,
		Role:        state.Principal.Role,
		LandingPath: h.registry.LandingPathFor(state.Principal.Role),
	})
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		if status == http.StatusOK {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) observeLogin(outcome string) {
	if h.observer != nil {
		h.observer.ObserveLogin(outcome)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Enter a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
