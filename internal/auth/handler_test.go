package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolprogress/schoolprogress/internal/auth"
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
	"github.com/schoolprogress/schoolprogress/internal/view"
)

type authFixture struct {
	router   chi.Router
	manager  *shared.SessionManager
	repo     *recordingSessions
	observer *countingObserver
}

func newAuthFixture(t *testing.T, authn auth.Authenticator) *authFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	manager := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "sps_test", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	repo := &recordingSessions{}
	observer := &countingObserver{}
	handler := auth.NewHandler(nil, auth.NewService(authn, repo), templates, manager, shared.NewCSRFManager("csrf"), nil, observer)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return &authFixture{router: r, manager: manager, repo: repo, observer: observer}
}

// do runs one request with the session loaded before and committed after,
// returning the recorder and the committed session.
func (f *authFixture) do(t *testing.T, req *http.Request, sessionID string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: f.manager.CookieName(), Value: sessionID})
	}
	sess, err := f.manager.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.NoError(t, f.manager.Commit(ctx, rec, req, sess))
	return rec, sess
}

func loginRequest(email, password string) *http.Request {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	f := newAuthFixture(t, &fakeAuthenticator{})

	rec, sess := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<form")
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, &fakeAuthenticator{err: shared.ErrInvalidCredentials})

	rec, sess := f.do(t, loginRequest("user@school.test", "wrongpass"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
	assert.Contains(t, rec.Body.String(), `value="user@school.test"`)
	_, ok := session.NewSessionStore(sess, nil).Get()
	assert.False(t, ok)
	assert.Equal(t, 1, f.observer.outcomes["rejected"])
}

func TestLoginValidationErrors(t *testing.T) {
	authn := &fakeAuthenticator{}
	f := newAuthFixture(t, authn)

	rec, _ := f.do(t, loginRequest("not-an-email", ""), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter a valid email address")
	assert.Contains(t, rec.Body.String(), "Password is required")
	assert.Zero(t, authn.calls)
}

func TestLoginServiceUnavailable(t *testing.T) {
	f := newAuthFixture(t, &fakeAuthenticator{err: auth.ErrAuthUnavailable})

	rec, _ := f.do(t, loginRequest("user@school.test", "secret1"), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "temporarily unavailable")
	assert.Equal(t, 1, f.observer.outcomes["unavailable"])
}

func TestLoginSuccessRedirectsToRoleLanding(t *testing.T) {
	cases := map[roles.ID]string{
		roles.SuperAdmin:     "/admin",
		roles.ClassTeacher:   "/class-teacher",
		roles.SubjectTeacher: "/subject-teacher",
		roles.StudentParent:  "/student",
	}
	for role, landing := range cases {
		t.Run(string(role), func(t *testing.T) {
			p := session.Principal{ID: "u-1", DisplayName: "Someone", Role: role}
			f := newAuthFixture(t, &fakeAuthenticator{principal: p, credential: "tok"})

			// Prime a session so the id renewal is observable.
			_, primed := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), "")
			before := primed.ID

			rec, sess := f.do(t, loginRequest("user@school.test", "secret1"), before)
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, landing, rec.Header().Get("Location"))
			assert.NotEqual(t, before, sess.ID)

			// The committed session survives a reload under the new id.
			reload := httptest.NewRequest(http.MethodGet, "/api/session", nil)
			rec, _ = f.do(t, reload, sess.ID)
			require.Equal(t, http.StatusOK, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "u-1", body["id"])
			assert.Equal(t, string(role), body["role"])
			assert.Equal(t, landing, body["landing_path"])

			require.Len(t, f.repo.created, 1)
			assert.Equal(t, sess.ID, f.repo.created[0].SessionID)
		})
	}
}

func TestLoginPageRedirectsAuthenticatedUser(t *testing.T) {
	p := session.Principal{ID: "u-1", DisplayName: "Someone", Role: roles.SubjectTeacher}
	f := newAuthFixture(t, &fakeAuthenticator{principal: p, credential: "tok"})

	_, sess := f.do(t, loginRequest("user@school.test", "secret1"), "")
	rec, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), sess.ID)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/subject-teacher", rec.Header().Get("Location"))
}

func TestAPISessionUnauthorized(t *testing.T) {
	f := newAuthFixture(t, &fakeAuthenticator{})

	rec, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/api/session", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":401`)
}
