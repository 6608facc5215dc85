package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/agent-vault/internal/auth"
	"github.com/yourusername/agent-vault/internal/config"
	"github.com/yourusername/agent-vault/internal/logging"
	"github.com/yourusername/agent-vault/internal/password"
	"github.com/yourusername/agent-vault/internal/pdf"
	"github.com/yourusername/agent-vault/internal/users"
)

var artifactBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type app struct {
	*httptest.Server
	store *users.Store
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	store, err := users.Open(filepath.Join(dir, "users.db"))
	require.NoError(t, err)
	require.NoError(t, store.ApplyMigrations())
	t.Cleanup(func() { _ = store.Close() })

	hasher, err := password.NewHasher(password.Options{
		Algorithm:   password.AlgorithmArgon2id,
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
	})
	require.NoError(t, err)

	artifactPath := filepath.Join(dir, "cheat_sheet.pdf")
	require.NoError(t, os.WriteFile(artifactPath, artifactBytes, 0o644))
	artifact, err := pdf.LoadArtifact(artifactPath)
	require.NoError(t, err)

	manager := auth.NewManager(store, time.Hour, 30*time.Minute)
	service := auth.NewService(store, hasher)

	sessionStore, closeSessions, err := auth.NewSessionStore(context.Background(), &config.Config{
		GinMode:       gin.TestMode,
		SessionStore:  config.SessionStoreCookie,
		SessionSecret: "test-secret-test-secret-test-secret",
		SessionMaxAge: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeSessions() })

	router := gin.New()
	router.Use(logging.Middleware(slog.New(slog.NewTextHandler(io.Discard, nil))))
	router.Use(sessions.Sessions(auth.SessionCookieName, sessionStore))
	require.NoError(t, Routes{
		Handler:  NewHandler(service, manager),
		Manager:  manager,
		Artifact: artifact,
		DB:       store,
		Service:  "agent-vault",
		Version:  "test",
	}.Register(router))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &app{Server: srv, store: store}
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (a *app) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: a.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	status   int
	location string
	header   http.Header
	body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		header:   resp.Header,
		body:     string(body),
	}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) register(email, pw, name string) page {
	return b.post("/register", url.Values{"email": {email}, "password": {pw}, "name": {name}})
}

func (b *browser) login(email, pw string) page {
	return b.post("/login", url.Values{"email": {email}, "password": {pw}})
}

func (b *browser) loggedIn() bool {
	b.t.Helper()
	p := b.get("/secrets")
	return p.status == http.StatusOK
}

func TestAgentLifecycle(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	first := a.browser(t)
	p := first.register("a@x.com", "pw1", "Ann")
	require.Equal(t, http.StatusSeeOther, p.status)
	require.Equal(t, "/secrets", p.location)

	user, err := a.store.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)
	require.NotEqual(t, "pw1", user.PasswordHash)

	p = first.get("/secrets")
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, "Access granted, Agent Ann")
	require.Contains(t, p.body, "Welcome, Agent Ann")

	// 通知は一度だけ表示される
	p = first.get("/secrets")
	require.NotContains(t, p.body, "Access granted")

	t.Run("duplicate registration", func(t *testing.T) {
		other := a.browser(t)
		p := other.register("a@x.com", "pw2", "Bob")
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, "/login", p.location)

		p = other.get("/login")
		require.Contains(t, p.body, "Duplicate detected!")
		require.False(t, other.loggedIn())

		count, err := a.store.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("wrong password", func(t *testing.T) {
		other := a.browser(t)
		p := other.login("a@x.com", "wrong")
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, "/login", p.location)

		p = other.get("/login")
		require.Contains(t, p.body, "Authentication failed. The system detected invalid credentials.")
		require.False(t, other.loggedIn())
	})

	t.Run("unknown email gets the same notice", func(t *testing.T) {
		other := a.browser(t)
		other.login("nobody@x.com", "pw1")
		p := other.get("/login")
		require.Contains(t, p.body, "Authentication failed. The system detected invalid credentials.")
	})

	t.Run("login then logout", func(t *testing.T) {
		other := a.browser(t)
		p := other.login("a@x.com", "pw1")
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, "/secrets", p.location)

		p = other.get("/secrets")
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "Welcome, Agent Ann")

		p = other.get("/logout")
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, "/", p.location)

		p = other.get("/")
		require.Contains(t, p.body, "Ann, you&#39;ve safely exited the system.")
		require.Contains(t, p.body, `href="/login"`)

		p = other.get("/secrets")
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, "/login", p.location)
	})
}

func TestGatedRoutesRedirectAnonymous(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/secrets"},
		{http.MethodGet, "/logout"},
		{http.MethodPost, "/download"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var p page
			if tc.method == http.MethodPost {
				p = b.post(tc.path, url.Values{})
			} else {
				p = b.get(tc.path)
			}
			require.Equal(t, http.StatusSeeOther, p.status)
			require.Equal(t, "/login", p.location)
			require.NotContains(t, p.body, "%PDF")
		})
	}

	p := b.get("/login")
	require.Contains(t, p.body, "Please log in to access this page.")
}

func TestDownloadServesArtifactUnchanged(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("a@x.com", "pw1", "Ann")

	p := b.post("/download", url.Values{})
	require.Equal(t, http.StatusOK, p.status)
	require.Equal(t, "application/pdf", p.header.Get("Content-Type"))
	require.Equal(t, string(artifactBytes), p.body)
}

func TestHomeReflectsLoginState(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	p := b.get("/")
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, `href="/register"`)
	require.NotContains(t, p.body, `href="/logout"`)

	b.register("a@x.com", "pw1", "Ann")
	p = b.get("/")
	require.Contains(t, p.body, `href="/logout"`)
}

func TestRegisterWhileLoggedInKeepsSessionOnDuplicate(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("a@x.com", "pw1", "Ann")

	p := b.register("a@x.com", "pw2", "Bob")
	require.Equal(t, "/login", p.location)
	require.True(t, b.loggedIn())
}

func TestLogoutTwiceIsHarmless(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("a@x.com", "pw1", "Ann")

	require.Equal(t, "/", b.get("/logout").location)
	require.Equal(t, "/login", b.get("/logout").location)
	require.False(t, b.loggedIn())
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	p := a.browser(t).get("/health")
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, `"status":"ok"`)

	require.NoError(t, a.store.Close())
	p = a.browser(t).get("/health")
	require.Equal(t, http.StatusServiceUnavailable, p.status)
}
