// ABOUTME: Server-rendered admin console for the Posible backend
// ABOUTME: Wires routes, per-browser sessions, CSRF protection, and the route guard

package webconsole

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/posible/posible-admin/internal/admin"
	"github.com/posible/posible-admin/internal/backend"
	"github.com/posible/posible-admin/internal/guard"
	"github.com/posible/posible-admin/internal/session"
	"github.com/posible/posible-admin/internal/tenant"
)

const (
	// ConsoleCookieName identifies the browser's console session.
	ConsoleCookieName = "posible_console"

	// CSRFCookieName is the name of the CSRF token cookie
	CSRFCookieName = "posible_console_csrf"

	// DefaultPendingWait is how long a request waits for the first session
	// check before the loading page is shown.
	DefaultPendingWait = 2 * time.Second

	// DefaultRecheckInterval is how long a confirmed session is trusted
	// before the backend is asked again.
	DefaultRecheckInterval = 5 * time.Minute
)

// Messages shown inline when a request fails without a backend message.
const (
	msgNoTenant   = "Database name not available. Please log in again."
	msgBadRequest = "Invalid request, please try again"
)

type contextKey string

const (
	consoleContextKey contextKey = "console_session"
	csrfContextKey    contextKey = "csrf_token"
)

// Recorder receives console metrics. *metrics.BackendMetrics satisfies it.
type Recorder interface {
	backend.Observer
	ObserveLogin(success bool)
	ObserveDegraded(figures []string)
	SetActiveSessions(n int)
}

// Config holds web console configuration
type Config struct {
	BackendURL     string
	BackendTimeout time.Duration
	Policy         tenant.Policy

	// IdleTimeout evicts browser sessions not seen for this long.
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	SecureCookies   bool

	// PendingWait bounds how long a guarded request waits for a session
	// check in flight. Zero means DefaultPendingWait.
	PendingWait time.Duration

	// RecheckInterval is how often an authenticated session is confirmed
	// with the backend. Zero means DefaultRecheckInterval.
	RecheckInterval time.Duration

	// ConnectPollInterval and ConnectRefreshDelay drive the OAuth popup on
	// the connecting page. Zero means the admin package defaults.
	ConnectPollInterval time.Duration
	ConnectRefreshDelay time.Duration

	Recorder Recorder
	Logger   *slog.Logger
}

// Console serves the admin web UI.
type Console struct {
	cfg       Config
	logger    *slog.Logger
	sessions  *registry
	guard     *guard.Middleware
	templates map[string]*template.Template
}

// New creates a Console. Close releases its background cleanup loop.
func New(cfg Config) (*Console, error) {
	if _, err := backend.New(cfg.BackendURL); err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if cfg.PendingWait <= 0 {
		cfg.PendingWait = DefaultPendingWait
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = DefaultRecheckInterval
	}
	if cfg.ConnectPollInterval <= 0 {
		cfg.ConnectPollInterval = admin.DefaultPollInterval
	}
	if cfg.ConnectRefreshDelay <= 0 {
		cfg.ConnectRefreshDelay = admin.DefaultRefreshDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	c := &Console{
		cfg:       cfg,
		logger:    logger.With("component", "webconsole"),
		templates: templates,
	}
	c.sessions = newRegistry(c.newSession, cfg.IdleTimeout, cfg.CleanupInterval, c.logger)
	if cfg.Recorder != nil {
		c.sessions.onChange = cfg.Recorder.SetActiveSessions
	}
	c.guard = &guard.Middleware{
		LoginPath: guard.DefaultLoginPath,
		State:     c.requestState,
		Loading:   http.HandlerFunc(c.handleLoading),
	}
	return c, nil
}

// Close stops the session cleanup loop and drops every browser session.
func (c *Console) Close() {
	c.sessions.Close()
}

// Handler returns a mux serving the console and /health.
func (c *Console) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	c.RegisterRoutes(mux)
	return mux
}

// RegisterRoutes registers all console routes on the given mux
func (c *Console) RegisterRoutes(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /admin/login", c.withSession(c.handleLoginPage))
	mux.HandleFunc("POST /admin/login", c.withSession(c.handleLogin))
	mux.HandleFunc("POST /admin/logout", c.withSession(c.handleLogout))

	// Guarded routes
	mux.HandleFunc("GET /admin", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("GET /admin/{$}", c.protected(c.handleDashboard))

	mux.HandleFunc("GET /admin/users", c.protected(c.handleUsers))
	mux.HandleFunc("POST /admin/users", c.protected(c.requireCSRF(c.handleCreateUser)))
	mux.HandleFunc("POST /admin/users/{phone}/delete", c.protected(c.requireCSRF(c.handleDeleteUser)))

	mux.HandleFunc("GET /admin/schedules", c.protected(c.handleSchedules))
	mux.HandleFunc("POST /admin/schedules", c.protected(c.requireCSRF(c.handleSaveSchedule)))
	mux.HandleFunc("POST /admin/schedules/{id}/delete", c.protected(c.requireCSRF(c.handleDeleteSchedule)))

	mux.HandleFunc("GET /admin/upload", c.protected(c.handleUploadPage))
	mux.HandleFunc("POST /admin/upload", c.protected(c.requireCSRF(c.handleUpload)))

	mux.HandleFunc("GET /admin/integrations", c.protected(c.handleIntegrations))
	mux.HandleFunc("POST /admin/integrations/{provider}/connect", c.protected(c.requireCSRF(c.handleConnect)))
	mux.HandleFunc("POST /admin/integrations/{provider}/disconnect", c.protected(c.requireCSRF(c.handleDisconnect)))
	mux.HandleFunc("POST /admin/integrations/{provider}/test", c.protected(c.requireCSRF(c.handleTestIntegration)))
	mux.HandleFunc("POST /admin/integrations/toast/api-key", c.protected(c.requireCSRF(c.handleToastKey)))

	mux.HandleFunc("GET /admin/chat", c.protected(c.handleChatPage))
	mux.HandleFunc("POST /admin/chat", c.protected(c.requireCSRF(c.handleChatSend)))

	c.logger.Info("console routes registered")
}

// withSession attaches the browser's console session when its cookie names
// a live one. Sessions are only created by a successful login.
func (c *Console) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(ConsoleCookieName)
		if err != nil {
			next(w, r)
			return
		}
		cs, ok := c.sessions.get(cookie.Value)
		if !ok {
			next(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), consoleContextKey, cs)
		next(w, r.WithContext(ctx))
	}
}

func (c *Console) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ConsoleCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// protected attaches the console session and applies the route guard.
func (c *Console) protected(next http.HandlerFunc) http.HandlerFunc {
	return c.withSession(c.guard.WrapFunc(next))
}

// requestState re-checks a session that is due, then waits briefly for a
// check in flight so that a quick answer skips the loading page.
func (c *Console) requestState(r *http.Request) session.State {
	cs := consoleFrom(r)
	if cs == nil {
		return session.Unauthenticated
	}
	c.recheck(cs)
	if state := cs.store.State(); state != session.Pending {
		return state
	}
	ctx, cancel := context.WithTimeout(r.Context(), c.cfg.PendingWait)
	defer cancel()
	return cs.store.Wait(ctx)
}

func consoleFrom(r *http.Request) *consoleSession {
	cs, _ := r.Context().Value(consoleContextKey).(*consoleSession)
	return cs
}

func (c *Console) secure(r *http.Request) bool {
	return c.cfg.SecureCookies || r.TLS != nil
}

// getCSRFToken retrieves the CSRF token from the request context
func getCSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey).(string)
	return token
}

// ensureCSRFToken generates a CSRF token if not present and adds it to context
func (c *Console) ensureCSRFToken(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	if token := getCSRFToken(r); token != "" {
		return r, token
	}
	cookie, err := r.Cookie(CSRFCookieName)
	if err == nil && cookie.Value != "" {
		ctx := context.WithValue(r.Context(), csrfContextKey, cookie.Value)
		return r.WithContext(ctx), cookie.Value
	}

	token, err := generateSecureToken(32)
	if err != nil {
		c.logger.Error("failed to generate CSRF token", "error", err)
		token = ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/admin",
		HttpOnly: true,
		Secure:   c.secure(r),
		SameSite: http.SameSiteStrictMode,
	})

	ctx := context.WithValue(r.Context(), csrfContextKey, token)
	return r.WithContext(ctx), token
}

// validateCSRF checks the CSRF token from form against cookie
func validateCSRF(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}

	formToken := r.FormValue("csrf_token")
	if formToken == "" {
		formToken = r.Header.Get("X-CSRF-Token")
	}

	return formToken != "" && formToken == cookie.Value
}

// requireCSRF rejects form posts without a matching CSRF token.
func (c *Console) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validateCSRF(r) {
			c.logger.Warn("rejected request with invalid CSRF token", "path", r.URL.Path)
			http.Error(w, msgBadRequest, http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// errorText turns a failed operation into inline display text.
func errorText(err error, fallback string) string {
	switch {
	case errors.Is(err, tenant.ErrNoTenant):
		return msgNoTenant
	case errors.Is(err, admin.ErrNotCSV):
		return "Please select a CSV file"
	case errors.Is(err, admin.ErrUserIncomplete):
		return "Name and phone number are required"
	case errors.Is(err, admin.ErrEmptyQuery):
		return "Please enter a report request"
	case errors.Is(err, admin.ErrAPIKeyEmpty):
		return "API key is required"
	}
	return backend.UserMessage(err, fallback)
}

func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
