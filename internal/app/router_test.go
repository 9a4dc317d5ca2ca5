package app_test

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolprogress/schoolprogress/internal/app"
	"github.com/schoolprogress/schoolprogress/internal/auth"
	"github.com/schoolprogress/schoolprogress/internal/observability"
	"github.com/schoolprogress/schoolprogress/internal/rbac"
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
	"github.com/schoolprogress/schoolprogress/internal/view"
	"github.com/schoolprogress/schoolprogress/jobs"
	_ "github.com/schoolprogress/schoolprogress/testing"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type memoryUsers map[string]*auth.User

func (m memoryUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if u, ok := m[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, auth.ErrNotFound
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, base string) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: base, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	res, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(b.t, err)
	return res, string(body)
}

func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	res, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
	return res
}

func (b *browser) csrf(path string) string {
	b.t.Helper()
	_, body := b.get(path)
	m := csrfPattern.FindStringSubmatch(body)
	require.Len(b.t, m, 2, "csrf token on %s", path)
	return m[1]
}

func newTestServer(t *testing.T) (*httptest.Server, *observability.Metrics) {
	t.Helper()
	return newTestServerAt(t, time.Now)
}

// newTestServerAt builds the application with a local authenticator whose
// credentials are issued and checked against clock.
func newTestServerAt(t *testing.T, clock func() time.Time) (*httptest.Server, *observability.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &app.Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}
	manager := shared.NewSessionManager(redisClient, "sps_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("teacher123"), bcrypt.MinCost)
	require.NoError(t, err)
	users := memoryUsers{
		"amina@school.test": {ID: "t-1", Email: "amina@school.test", FullName: "Amina Njeri", Role: "CLASS_TEACHER", PasswordHash: string(hash), IsActive: true},
		"sarah@school.test": {ID: "a-1", Email: "sarah@school.test", FullName: "Sarah Admin", Role: "SUPER_ADMIN", PasswordHash: string(hash), IsActive: true},
	}

	registry := roles.Default()
	metrics := observability.NewMetrics()
	issuer := auth.NewTokenIssuer("jwt", time.Hour).WithClock(clock)
	service := auth.NewService(auth.NewLocalAuthenticator(users, issuer), nil)
	logger := app.NewLogger(&app.Config{LogLevel: "error"})
	stores := session.RequestProvider(logger, issuer.Check)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: manager,
		CSRFManager:    csrf,
		Registry:       registry,
		AuthHandler:    auth.NewHandler(logger, service, templates, manager, csrf, registry, metrics).WithStores(stores),
		AuthService:    service,
		Stores:         stores,
		RBACMiddleware: rbac.Middleware{
			Routes:   rbac.NewRouteTable(registry),
			Stores:   stores,
			Logger:   logger,
			Observer: metrics,
		},
		JobHandler: jobs.NewHandler(nil, nil, logger),
		Metrics:    metrics,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, metrics
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	b := newBrowser(t, srv.URL)

	res, _ := b.get("/admin")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, body := b.get("/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Sign in")

	token := b.csrf("/login")
	res = b.post("/login", url.Values{"email": {"amina@school.test"}, "password": {"wrong-password"}, "csrf_token": {token}})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	token = b.csrf("/login")
	res = b.post("/login", url.Values{"email": {"amina@school.test"}, "password": {"teacher123"}, "csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/class-teacher", res.Header.Get("Location"))

	res, body = b.get("/class-teacher")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Class Teacher Panel")
	assert.Contains(t, body, "Welcome back, Amina Njeri")

	res, _ = b.get("/class-teacher/students")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = b.get("/admin/students")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))

	res, _ = b.get("/")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/class-teacher", res.Header.Get("Location"))

	res, body = b.get("/api/session")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"role":"CLASS_TEACHER"`)

	res = b.post("/logout", url.Values{})
	assert.Equal(t, http.StatusForbidden, res.StatusCode, "logout without csrf token")

	token = b.csrf("/class-teacher")
	res = b.post("/class-teacher/logout", url.Values{"csrf_token": {token}})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, _ = b.get("/class-teacher")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	// Logging out again is a plain redirect.
	token = b.csrf("/login")
	res = b.post("/logout", url.Values{"csrf_token": {token}})
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, _ = b.get("/api/session")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestExpiredCredentialEndsSession(t *testing.T) {
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	srv, _ := newTestServerAt(t, clock)
	b := newBrowser(t, srv.URL)

	token := b.csrf("/login")
	res := b.post("/login", url.Values{"email": {"amina@school.test"}, "password": {"teacher123"}, "csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)

	res, _ = b.get("/class-teacher/students")
	require.Equal(t, http.StatusOK, res.StatusCode)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()

	res, _ = b.get("/class-teacher/students")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, _ = b.get("/api/session")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body := b.get("/login")
	assert.Equal(t, http.StatusOK, res.StatusCode, "the login form is shown again")
	assert.Contains(t, body, "Sign in")
}

func TestAdminJobsRequireSuperAdmin(t *testing.T) {
	srv, _ := newTestServer(t)
	b := newBrowser(t, srv.URL)

	res, _ := b.get("/admin/jobs/health")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	teacher := newBrowser(t, srv.URL)
	token := teacher.csrf("/login")
	res = teacher.post("/login", url.Values{"email": {"amina@school.test"}, "password": {"teacher123"}, "csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	res, _ = teacher.get("/admin/jobs/health")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))

	admin := newBrowser(t, srv.URL)
	token = admin.csrf("/login")
	res = admin.post("/login", url.Values{"email": {"sarah@school.test"}, "password": {"teacher123"}, "csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	res, body := admin.get("/admin/jobs/health")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `"queue":"default"`)
}

func TestPublicEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	b := newBrowser(t, srv.URL)

	res, body := b.get("/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	res, _ = b.get("/install")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = b.get("/static/css/app.css")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "public, max-age=3600", res.Header.Get("Cache-Control"))
	assert.Empty(t, res.Header.Values("Set-Cookie"), "static assets are served without a session")

	res, _ = b.get("/static/pwa/manifest.webmanifest")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/manifest+json", res.Header.Get("Content-Type"))

	res, _ = b.get("/admin")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)

	res, body = b.get("/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `sps_guard_decisions_total{decision="denied_unauthenticated"}`)
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	b := newBrowser(t, srv.URL)

	res, _ := b.get("/login")
	assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", res.Header.Get("Referrer-Policy"))
}
