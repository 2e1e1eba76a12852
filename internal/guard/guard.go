// ABOUTME: Route guard mapping session state to wait, redirect, or allow
// ABOUTME: Shared by the web console middleware and the CLI's protected commands

// Package guard decides whether a protected route may render.
package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/posible/posible-admin/internal/session"
)

// DefaultLoginPath is where unauthenticated requests are sent.
const DefaultLoginPath = "/admin/login"

// Decision is the guard verdict for one request.
type Decision int

const (
	// Wait means the session check has not settled; show a loading indicator.
	Wait Decision = iota
	// Redirect means send the user to the login route.
	Redirect
	// Allow means render the protected content.
	Allow
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Outcome is a decision plus where to go for Redirect. From is the location
// originally requested, to return to after login.
type Outcome struct {
	Decision Decision
	Location string
	From     string
}

// Decide maps state to an outcome for a request to requested, using the
// default login path.
func Decide(state session.State, requested string) Outcome {
	return DecideWith(DefaultLoginPath, state, requested)
}

// DecideWith is Decide with an explicit login path.
func DecideWith(loginPath string, state session.State, requested string) Outcome {
	switch state {
	case session.Authenticated:
		return Outcome{Decision: Allow}
	case session.Pending:
		return Outcome{Decision: Wait}
	default:
		return Outcome{Decision: Redirect, Location: LoginLocation(loginPath, requested), From: requested}
	}
}

// LoginLocation returns loginPath carrying from as the "from" query
// parameter, or loginPath alone when from is not a safe local path.
func LoginLocation(loginPath, from string) string {
	if !IsLocalPath(from) || from == loginPath {
		return loginPath
	}
	return loginPath + "?" + url.Values{"from": {from}}.Encode()
}

// ReturnTo returns from when it is a safe local path, otherwise fallback.
func ReturnTo(from, fallback string) string {
	if IsLocalPath(from) {
		return from
	}
	return fallback
}

// IsLocalPath reports whether p is an absolute path on this host.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// StateFunc resolves the session state behind a request.
type StateFunc func(r *http.Request) session.State

// Middleware guards handlers registered behind it.
type Middleware struct {
	// LoginPath defaults to DefaultLoginPath.
	LoginPath string
	// State resolves the request's session state.
	State StateFunc
	// Loading renders the pending indicator.
	Loading http.Handler
}

// Wrap returns next guarded by m.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	loginPath := m.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := DecideWith(loginPath, m.State(r), r.URL.RequestURI())
		switch out.Decision {
		case Allow:
			next.ServeHTTP(w, r)
		case Wait:
			if m.Loading != nil {
				m.Loading.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Loading...", http.StatusServiceUnavailable)
		default:
			http.Redirect(w, r, out.Location, http.StatusSeeOther)
		}
	})
}

// WrapFunc is Wrap for a handler function.
func (m *Middleware) WrapFunc(next http.HandlerFunc) http.HandlerFunc {
	return m.Wrap(next).ServeHTTP
}
