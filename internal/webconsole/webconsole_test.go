// ABOUTME: End-to-end tests for the web console against the fake backend
// ABOUTME: Drives a cookie-carrying browser through login, the guard, and each screen

package webconsole

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/backend/backendtest"
	"github.com/posible/posible-admin/internal/session"
	"github.com/posible/posible-admin/internal/tenant"
)

type fixture struct {
	console *Console
	backend *backendtest.Server
	server  *httptest.Server
}

func newFixture(t *testing.T, policy tenant.Policy) *fixture {
	t.Helper()
	srv := backendtest.New(t)
	srv.AddAccount("a@b.com", "x", map[string]any{"db_name": "tenant1", "twilio_number": "+15550001111"})

	console, err := New(Config{
		BackendURL:          srv.URL,
		BackendTimeout:      5 * time.Second,
		Policy:              policy,
		ConnectPollInterval: 10 * time.Millisecond,
		ConnectRefreshDelay: 10 * time.Millisecond,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(console.Close)

	web := httptest.NewServer(console.Handler())
	t.Cleanup(web.Close)

	return &fixture{console: console, backend: srv, server: web}
}

// browser is a cookie-carrying client against the console.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (f *fixture) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: f.server.URL, client: &http.Client{Jar: jar}}
}

// noFollow returns a copy that reports redirects instead of following them.
func (b *browser) noFollow() *browser {
	cp := *b
	hc := *b.client
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	cp.client = &hc
	return &cp
}

func (b *browser) do(req *http.Request) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, string(body)
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

// csrf returns the CSRF cookie, loading the login page first if needed.
func (b *browser) csrf() string {
	b.t.Helper()
	u, _ := url.Parse(b.base + "/admin/")
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == CSRFCookieName {
			return c.Value
		}
	}
	b.get("/admin/login")
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == CSRFCookieName {
			return c.Value
		}
	}
	b.t.Fatal("no CSRF cookie issued")
	return ""
}

func (b *browser) form(values url.Values) url.Values {
	if values == nil {
		values = url.Values{}
	}
	values.Set("csrf_token", b.csrf())
	return values
}

func (b *browser) login(email, password string) {
	b.t.Helper()
	resp, body := b.post("/admin/login", b.form(url.Values{"email": {email}, "password": {password}}))
	require.Equal(b.t, http.StatusOK, resp.StatusCode, body)
	require.Equal(b.t, "/admin/", resp.Request.URL.Path)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	resp, body := f.browser(t).get("/health")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestGuard_RedirectsWithFrom(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t).noFollow()

	resp, _ := b.get("/admin/users")

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login?from=%2Fadmin%2Fusers", resp.Header.Get("Location"))
}

func TestLogin_ReturnsToFrom(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)

	_, page := b.get("/admin/users")
	assert.Contains(t, page, `name="from" value="/admin/users"`)

	resp, body := b.post("/admin/login", b.form(url.Values{
		"email":    {"a@b.com"},
		"password": {"x"},
		"from":     {"/admin/users"},
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/admin/users", resp.Request.URL.Path)
	assert.Contains(t, body, "a@b.com")
	assert.Contains(t, body, "tenant1")
}

func TestLogin_IgnoresOffsiteFrom(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	csrf := b.csrf()

	resp, _ := b.noFollow().post("/admin/login", url.Values{
		"csrf_token": {csrf},
		"email":      {"a@b.com"},
		"password":   {"x"},
		"from":       {"//evil.example.com/"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/", resp.Header.Get("Location"))
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)

	resp, body := b.post("/admin/login", b.form(url.Values{"email": {"a@b.com"}, "password": {"nope"}}))

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid email or password")
	assert.Contains(t, body, `value="a@b.com"`)
}

func TestLogin_RequiresCSRF(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)

	resp, body := b.post("/admin/login", url.Values{"email": {"a@b.com"}, "password": {"x"}})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, msgBadRequest)
	for _, r := range f.backend.Requests() {
		assert.NotEqual(t, "/api/auth/login", r.Path)
	}
}

func TestLoginPage_RedirectsWhenSignedIn(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	resp, _ := b.noFollow().get("/admin/login")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/", resp.Header.Get("Location"))
}

func TestForms_RequireCSRF(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	resp, _ := b.post("/admin/users", url.Values{"name": {"Ann"}, "phone_number": {"+1555"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.backend.Tenant("tenant1").Users)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	f.backend.Tenant("tenant1").Users = []map[string]any{
		{"name": "Ann", "from_number": "+1", "is_admin": true},
		{"name": "Bob", "from_number": "+2", "is_admin": false},
	}
	b := f.browser(t)
	b.login("a@b.com", "x")

	_, body := b.get("/admin/")
	assert.Contains(t, body, "Total Users")
	assert.Contains(t, body, ">2<")
	assert.NotContains(t, body, "could not be loaded")
}

func TestDashboard_DegradesFailingFigure(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")
	f.backend.Fail("GET /api/users/tenant1", http.StatusInternalServerError, "boom")

	resp, body := b.get("/admin/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Some figures could not be loaded: users.")
}

func TestUsers_CreateAndDelete(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	_, body := b.post("/admin/users", b.form(url.Values{"name": {"Ann"}, "phone_number": {"+15552223333"}, "is_admin": {"1"}}))
	assert.Contains(t, body, "User added")
	assert.Contains(t, body, "Ann")
	assert.Contains(t, body, "Admin")

	_, body = b.post("/admin/users", b.form(url.Values{"name": {"  "}, "phone_number": {"+1"}}))
	assert.Contains(t, body, "Name and phone number are required")

	_, body = b.post("/admin/users/+15552223333/delete", b.form(nil))
	assert.Contains(t, body, "User deleted")
	assert.Empty(t, f.backend.Tenant("tenant1").Users)
	assert.Equal(t, "/api/users/tenant1", f.backend.LastRequest().Path)
}

func TestSchedules_Lifecycle(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	_, body := b.post("/admin/schedules", b.form(url.Values{
		"request":   {"Daily sales summary"},
		"to_number": {"+15557778888"},
		"days":      {"wed", "mon"},
		"hour":      {"13"},
	}))
	assert.Contains(t, body, "Schedule created")
	assert.Contains(t, body, "Daily sales summary")
	assert.Contains(t, body, "Mon, Wed")
	assert.Contains(t, body, "1:00 PM")

	scheds := f.backend.Tenant("tenant1").Schedules
	require.Len(t, scheds, 1)
	assert.Equal(t, "mon,wed", scheds[0]["day"])
	assert.Equal(t, "+15550001111", scheds[0]["twilio_number"])

	_, body = b.get("/admin/schedules?edit=1")
	assert.Contains(t, body, "Edit Schedule")
	assert.Contains(t, body, `name="id" value="1"`)

	_, body = b.post("/admin/schedules", b.form(url.Values{
		"id":        {"1"},
		"request":   {"Weekly inventory"},
		"to_number": {"+15557778888"},
		"days":      {"fri"},
		"hour":      {"0"},
	}))
	assert.Contains(t, body, "Schedule updated")
	assert.Contains(t, body, "Weekly inventory")
	assert.Contains(t, body, "12:00 AM")

	_, body = b.post("/admin/schedules", b.form(url.Values{"request": {"x"}, "to_number": {"+1"}, "hour": {"9"}}))
	assert.Contains(t, body, "Please select at least one day")

	_, body = b.post("/admin/schedules/1/delete", b.form(url.Values{"to_number": {"+15557778888"}}))
	assert.Contains(t, body, "Schedule deleted")
	assert.Empty(t, f.backend.Tenant("tenant1").Schedules)
}

func TestSchedules_PhoneFilterUsesPath(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	b.get("/admin/schedules?phone=%2B15557778888")

	var found bool
	for _, r := range f.backend.Requests() {
		if r.Path == "/api/schedules/tenant1/+15557778888" {
			found = true
			assert.Empty(t, r.RawQuery)
		}
	}
	assert.True(t, found, "expected a phone-scoped schedules request")
}

func uploadRequest(t *testing.T, b *browser, filename, content, primaryKey string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("csrf_token", b.csrf()))
	if primaryKey != "" {
		require.NoError(t, mw.WriteField("primary_key", primaryKey))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.base+"/admin/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	_, body := b.do(uploadRequest(t, b, "notes.txt", "hello", ""))
	assert.Contains(t, body, "Please select a CSV file")
	assert.Empty(t, f.backend.Tenant("tenant1").Uploads)

	_, body = b.do(uploadRequest(t, b, "sales.csv", "id,total\n1,10\n2,20\n", "id"))
	assert.Contains(t, body, "Imported 2 rows.")

	uploads := f.backend.Tenant("tenant1").Uploads
	require.Len(t, uploads, 1)
	assert.Equal(t, "sales.csv", uploads[0].Filename)
	assert.True(t, uploads[0].HasKey)
	assert.Equal(t, "id", uploads[0].PrimaryKey)
}

func TestIntegrations(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	_, body := b.get("/admin/integrations")
	assert.Contains(t, body, "Square")
	assert.Contains(t, body, "Toast uses API key authentication")

	_, body = b.post("/admin/integrations/square/connect", b.form(nil))
	assert.Contains(t, body, "Connecting Square")
	assert.Contains(t, body, f.backend.URL+"/oauth/square")

	_, body = b.get("/admin/integrations")
	assert.Contains(t, body, "since Mar 5, 2024")
	assert.Contains(t, body, "Merchant ID: M-square")

	_, body = b.post("/admin/integrations/square/test", b.form(nil))
	assert.Contains(t, body, "Square connection is working")

	_, body = b.post("/admin/integrations/square/disconnect", b.form(nil))
	assert.Contains(t, body, "Square disconnected")
}

func TestIntegrations_ToastUsesAPIKey(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	resp, body := b.post("/admin/integrations/toast/connect", b.form(nil))
	assert.Equal(t, "toast=1", resp.Request.URL.RawQuery)
	assert.Contains(t, body, "Connect Toast")
	for _, r := range f.backend.Requests() {
		assert.NotEqual(t, "/api/integrations/tenant1/toast/connect", r.Path)
	}

	_, body = b.post("/admin/integrations/toast/api-key", b.form(url.Values{"api_key": {""}}))
	assert.Contains(t, body, "API key is required")

	_, body = b.post("/admin/integrations/toast/api-key", b.form(url.Values{"api_key": {"k-123"}, "restaurant_guid": {"guid-1"}}))
	assert.Contains(t, body, "Toast connected")
	assert.Contains(t, body, "Merchant ID: guid-1")
}

func TestChat(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")

	_, body := b.get("/admin/chat")
	assert.Contains(t, body, "Ask a question")

	_, body = b.post("/admin/chat", b.form(url.Values{"message": {"**sales** today"}}))
	assert.Contains(t, body, `<div class="msg user">**sales** today</div>`)
	assert.Contains(t, body, "<strong>sales</strong>")

	// history is reloaded from the backend on the next visit
	_, body = b.get("/admin/chat")
	assert.Contains(t, body, "<strong>sales</strong>")
	assert.Equal(t, "/api/conversation-history/tenant1/+15550001111", f.backend.LastRequest().Path)
}

func TestStrictMode_NoTenantMakesNoRequests(t *testing.T) {
	f := newFixture(t, tenant.Policy{Mode: tenant.Strict})
	f.backend.AddAccount("solo@b.com", "x", nil)
	b := f.browser(t)
	b.login("solo@b.com", "x")
	before := f.backend.RequestCount()

	_, body := b.get("/admin/users")
	assert.Contains(t, body, msgNoTenant)
	_, body = b.post("/admin/chat", b.form(url.Values{"message": {"hi"}}))
	assert.Contains(t, body, msgNoTenant)
	b.get("/admin/integrations")

	assert.Equal(t, before, f.backend.RequestCount())
}

func TestPermissiveMode_UsesFallback(t *testing.T) {
	f := newFixture(t, tenant.Policy{Mode: tenant.Permissive, FallbackDBName: "demo", FallbackTwilioNumber: "+15550000000"})
	f.backend.AddAccount("solo@b.com", "x", nil)
	b := f.browser(t)
	b.login("solo@b.com", "x")

	b.get("/admin/users")
	assert.Equal(t, "/api/users/demo", f.backend.LastRequest().Path)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)
	b.login("a@b.com", "x")
	require.Equal(t, 1, f.console.sessions.len())

	resp, _ := b.post("/admin/logout", b.form(nil))
	assert.Equal(t, "/admin/login", resp.Request.URL.Path)

	var sawLogout bool
	for _, r := range f.backend.Requests() {
		sawLogout = sawLogout || r.Path == "/api/auth/logout"
	}
	assert.True(t, sawLogout)

	resp, _ = b.noFollow().get("/admin/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLoadingPage_WhileRecheckPending(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/"})
			_, _ = io.WriteString(w, `{"success":true,"user":{"email":"a@b.com","db_name":"tenant1"}}`)
		case "/api/auth/session":
			<-release
			_, _ = io.WriteString(w, `{"success":true,"authenticated":true,"user":{"email":"a@b.com","db_name":"tenant1"}}`)
		default:
			_, _ = io.WriteString(w, `{"success":true}`)
		}
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	console, err := New(Config{
		BackendURL:      slow.URL,
		PendingWait:     20 * time.Millisecond,
		RecheckInterval: time.Nanosecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(console.Close)
	web := httptest.NewServer(console.Handler())
	t.Cleanup(web.Close)

	f := &fixture{console: console, server: web}
	b := f.browser(t)
	resp, _ := b.noFollow().post("/admin/login", b.form(url.Values{"email": {"a@b.com"}, "password": {"x"}}))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, body := b.get("/admin/")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	assert.Contains(t, body, "Loading...")
	assert.Contains(t, body, `http-equiv="refresh"`)
}

func TestCookielessRequests_CreateNoSessions(t *testing.T) {
	f := newFixture(t, tenant.Policy{})

	for i := 0; i < 50; i++ {
		b := f.browser(t).noFollow()
		b.get("/admin/login")
		resp, _ := b.get("/admin/users")
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	}

	assert.Zero(t, f.console.sessions.len())
	assert.Zero(t, f.backend.RequestCount())
}

func TestLogin_FailureKeepsNoSession(t *testing.T) {
	f := newFixture(t, tenant.Policy{})
	b := f.browser(t)

	resp, _ := b.post("/admin/login", b.form(url.Values{"email": {"a@b.com"}, "password": {"nope"}}))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.console.sessions.len())

	u, _ := url.Parse(f.server.URL + "/admin/")
	for _, c := range b.client.Jar.Cookies(u) {
		assert.NotEqual(t, ConsoleCookieName, c.Name)
	}

	b.login("a@b.com", "x")
	assert.Equal(t, 1, f.console.sessions.len())
}

// loginGateway answers every login with a fixed identity.
type loginGateway struct{}

func (loginGateway) Session(context.Context) (*backend.AuthResponse, error) {
	return &backend.AuthResponse{}, nil
}

func (loginGateway) Login(context.Context, string, string) (*backend.AuthResponse, error) {
	return &backend.AuthResponse{User: json.RawMessage(`{"email":"a@b.com"}`)}, nil
}

func (loginGateway) Logout(context.Context) error { return nil }

func TestRegistry_EvictsIdleSessions(t *testing.T) {
	now := time.Now()
	var built int
	reg := newRegistry(func(id string) (*consoleSession, error) {
		built++
		return &consoleSession{id: id, store: session.NewStore(loginGateway{}, nil), lastUsed: now}, nil
	}, time.Hour, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer reg.Close()
	reg.now = func() time.Time { return now }

	var counts []int
	reg.onChange = func(n int) { counts = append(counts, n) }

	a, err := reg.create()
	require.NoError(t, err)
	a.store.Login(context.Background(), "a@b.com", "x")
	b, err := reg.create()
	require.NoError(t, err)
	b.store.Login(context.Background(), "a@b.com", "x")
	signedOut, err := reg.create()
	require.NoError(t, err)
	assert.Equal(t, 3, built)

	_, ok := reg.get("unknown-id")
	assert.False(t, ok)
	again, ok := reg.get(a.id)
	require.True(t, ok)
	assert.Same(t, a, again)

	// a signed-out session goes after the short timeout
	now = now.Add(15 * time.Minute)
	a.touch(now)
	b.touch(now)
	assert.Equal(t, 1, reg.evictIdle())
	_, ok = reg.get(signedOut.id)
	assert.False(t, ok)

	// authenticated ones stay until the idle timeout
	now = now.Add(30 * time.Minute)
	a.touch(now)
	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, reg.evictIdle())
	assert.Equal(t, 1, reg.len())
	_, ok = reg.get(a.id)
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 2, 1}, counts)
}
