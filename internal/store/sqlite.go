// ABOUTME: SQLite-backed persistent cookie jar using modernc.org/sqlite
// ABOUTME: Writes cookies through to disk and replays them into an in-memory jar on open

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a persistent http.CookieJar. It is safe for concurrent use.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu  sync.Mutex
	jar *cookiejar.Jar
	now func() time.Time
}

// NewSQLiteStore opens the cookie database at path, creating it and its
// parent directories if needed, and loads the unexpired cookies.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.load(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading cookies: %w", err)
	}

	logger.Debug("cookie store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cookies (
			host TEXT NOT NULL,
			domain TEXT NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			url TEXT NOT NULL,
			value TEXT NOT NULL,
			expires INTEGER,
			secure INTEGER NOT NULL DEFAULT 0,
			http_only INTEGER NOT NULL DEFAULT 0,
			same_site INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (host, domain, path, name)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func newJar() *cookiejar.Jar {
	// cookiejar.New never returns an error
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// load rebuilds the in-memory jar from the table, dropping expired rows.
func (s *SQLiteStore) load(ctx context.Context) error {
	now := s.now()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE expires IS NOT NULL AND expires <= ?`, now.Unix()); err != nil {
		return fmt.Errorf("pruning expired cookies: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url, domain, path, name, value, expires, secure, http_only, same_site
		FROM cookies ORDER BY updated_at`)
	if err != nil {
		return err
	}
	defer rows.Close()

	jar := newJar()
	n := 0
	for rows.Next() {
		var (
			rawURL           string
			c                http.Cookie
			expires          sql.NullInt64
			secure, httpOnly bool
			sameSite         int
		)
		if err := rows.Scan(&rawURL, &c.Domain, &c.Path, &c.Name, &c.Value, &expires, &secure, &httpOnly, &sameSite); err != nil {
			return fmt.Errorf("scanning cookie: %w", err)
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			s.logger.Warn("skipping cookie with bad url", "url", rawURL, "error", err)
			continue
		}
		if expires.Valid {
			c.Expires = time.Unix(expires.Int64, 0)
		}
		c.Secure, c.HttpOnly, c.SameSite = secure, httpOnly, http.SameSite(sameSite)
		jar.SetCookies(u, []*http.Cookie{&c})
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.jar = jar
	s.mu.Unlock()
	s.logger.Debug("cookies loaded", "count", n)
	return nil
}

// SetCookies implements http.CookieJar. Write failures are logged; the
// in-memory jar is always updated.
func (s *SQLiteStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()
	jar.SetCookies(u, cookies)

	ctx := context.Background()
	now := s.now()
	host := strings.ToLower(u.Hostname())
	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String()

	for _, c := range cookies {
		domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
		var err error
		if expires, keep := expiry(c, now); !keep {
			_, err = s.db.ExecContext(ctx,
				`DELETE FROM cookies WHERE host = ? AND domain = ? AND path = ? AND name = ?`,
				host, domain, c.Path, c.Name)
		} else {
			_, err = s.db.ExecContext(ctx, `
				INSERT INTO cookies (host, domain, path, name, url, value, expires, secure, http_only, same_site, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (host, domain, path, name) DO UPDATE SET
					url = excluded.url,
					value = excluded.value,
					expires = excluded.expires,
					secure = excluded.secure,
					http_only = excluded.http_only,
					same_site = excluded.same_site,
					updated_at = excluded.updated_at`,
				host, domain, c.Path, c.Name, origin, c.Value, expires, c.Secure, c.HttpOnly, int(c.SameSite), now.UnixNano())
		}
		if err != nil {
			s.logger.Warn("failed to persist cookie", "name", c.Name, "host", host, "error", err)
		}
	}
}

// expiry returns the unix expiry to store and whether the cookie should be
// kept at all. A nil expiry is a session cookie.
func expiry(c *http.Cookie, now time.Time) (any, bool) {
	switch {
	case c.MaxAge < 0:
		return nil, false
	case c.MaxAge > 0:
		return now.Add(time.Duration(c.MaxAge) * time.Second).Unix(), true
	case !c.Expires.IsZero():
		if !c.Expires.After(now) {
			return nil, false
		}
		return c.Expires.Unix(), true
	default:
		return nil, true
	}
}

// Cookies implements http.CookieJar.
func (s *SQLiteStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()
	return jar.Cookies(u)
}

// Count returns the number of stored cookies.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cookies`).Scan(&n)
	return n, err
}

// Clear removes every cookie from disk and memory.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("clearing cookies: %w", err)
	}
	s.mu.Lock()
	s.jar = newJar()
	s.mu.Unlock()
	s.logger.Debug("cookies cleared")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
