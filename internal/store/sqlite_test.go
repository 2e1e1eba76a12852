// ABOUTME: Tests for the SQLite cookie store
// ABOUTME: Covers persistence across reopen, server-side deletion, expiry, and Clear

package store

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/backend/backendtest"
)

func newTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "cookies.db")

	s := newTestStore(t, dbPath)
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestSetCookies_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cookies.db")
	login := mustURL(t, "http://127.0.0.1:8080/api/auth/login")
	later := mustURL(t, "http://127.0.0.1:8080/api/users/tenant1")

	s := newTestStore(t, dbPath)
	s.SetCookies(login, []*http.Cookie{
		{Name: "posible_session", Value: "sess-1", Path: "/", HttpOnly: true},
		{Name: "prefs", Value: "dark", Path: "/", MaxAge: 3600},
	})
	if got := cookieValue(s.Cookies(later), "posible_session"); got != "sess-1" {
		t.Fatalf("in-memory cookie = %q, want sess-1", got)
	}
	s.Close()

	s = newTestStore(t, dbPath)
	defer s.Close()

	cookies := s.Cookies(later)
	if got := cookieValue(cookies, "posible_session"); got != "sess-1" {
		t.Errorf("session cookie after reopen = %q, want sess-1", got)
	}
	if got := cookieValue(cookies, "prefs"); got != "dark" {
		t.Errorf("persistent cookie after reopen = %q, want dark", got)
	}
	if n, err := s.Count(context.Background()); err != nil || n != 2 {
		t.Errorf("Count = %d, %v; want 2", n, err)
	}
}

func TestSetCookies_UpdatesInPlace(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "cookies.db"))
	defer s.Close()
	u := mustURL(t, "https://api.posible.example/api/auth/login")

	s.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "one", Path: "/"}})
	s.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "two", Path: "/"}})

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestSetCookies_ServerDeletion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cookies.db")
	u := mustURL(t, "http://localhost/api/auth/logout")

	s := newTestStore(t, dbPath)
	s.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "abc", Path: "/"}})
	s.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "", Path: "/", MaxAge: -1}})
	if got := len(s.Cookies(u)); got != 0 {
		t.Errorf("cookies after deletion = %d, want 0", got)
	}
	s.Close()

	s = newTestStore(t, dbPath)
	defer s.Close()
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Errorf("Count after reopen = %d, want 0", n)
	}
}

func TestLoad_DropsExpired(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cookies.db")
	u := mustURL(t, "http://localhost/")

	s := newTestStore(t, dbPath)
	s.SetCookies(u, []*http.Cookie{{Name: "short", Value: "v", Path: "/", Expires: time.Now().Add(2 * time.Second)}})
	s.Close()

	s = newTestStore(t, dbPath)
	defer s.Close()
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	if err := s.load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Errorf("Count = %d, want expired cookie pruned", n)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "cookies.db"))
	defer s.Close()
	u := mustURL(t, "http://localhost/")

	s.SetCookies(u, []*http.Cookie{{Name: "sid", Value: "abc", Path: "/"}})
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if got := len(s.Cookies(u)); got != 0 {
		t.Errorf("cookies after Clear = %d, want 0", got)
	}
	if n, _ := s.Count(context.Background()); n != 0 {
		t.Errorf("Count after Clear = %d, want 0", n)
	}
}

func TestBackendSessionSurvivesRestart(t *testing.T) {
	srv := backendtest.New(t)
	srv.AddAccount("a@b.com", "x", map[string]any{"db_name": "tenant1"})
	dbPath := filepath.Join(t.TempDir(), "cookies.db")
	ctx := context.Background()

	s := newTestStore(t, dbPath)
	client, err := backend.New(srv.URL, backend.WithJar(s))
	if err != nil {
		t.Fatalf("backend.New failed: %v", err)
	}
	if _, err := client.Login(ctx, "a@b.com", "x"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	s.Close()

	s = newTestStore(t, dbPath)
	defer s.Close()
	client, err = backend.New(srv.URL, backend.WithJar(s))
	if err != nil {
		t.Fatalf("backend.New failed: %v", err)
	}
	resp, err := client.Session(ctx)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if !resp.Authenticated {
		t.Fatal("session not restored from cookie store")
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count after logout = %d, want 0", n)
	}
}
