// ABOUTME: Login, logout and loading handlers for the web console
// ABOUTME: Delegates to the browser's session store and returns to ?from= after login

package webconsole

import (
	"net/http"
	"strings"
	"time"

	"github.com/posible/posible-admin/internal/guard"
	"github.com/posible/posible-admin/internal/session"
)

// handleLoginPage renders the login page
func (c *Console) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")

	if c.requestState(r) == session.Authenticated {
		http.Redirect(w, r, guard.ReturnTo(from, "/admin/"), http.StatusSeeOther)
		return
	}

	_, csrfToken := c.ensureCSRFToken(w, r)
	c.renderLogin(w, loginForm{From: from}, "", csrfToken)
}

// handleLogin processes login form submission
func (c *Console) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		_, csrfToken := c.ensureCSRFToken(w, r)
		c.renderLogin(w, loginForm{}, "Invalid form data", csrfToken)
		return
	}

	form := loginForm{
		Email: strings.TrimSpace(r.FormValue("email")),
		From:  r.FormValue("from"),
	}

	if !validateCSRF(r) {
		_, csrfToken := c.ensureCSRFToken(w, r)
		c.renderLogin(w, form, msgBadRequest, csrfToken)
		return
	}

	password := r.FormValue("password")
	if form.Email == "" || password == "" {
		_, csrfToken := c.ensureCSRFToken(w, r)
		c.renderLogin(w, form, "Email and password required", csrfToken)
		return
	}

	cs, created := consoleFrom(r), false
	if cs == nil {
		var err error
		if cs, err = c.sessions.create(); err != nil {
			c.logger.Error("failed to create console session", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		created = true
	}

	res := cs.store.Login(r.Context(), form.Email, password)
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.ObserveLogin(res.Success)
	}
	if !res.Success {
		if created {
			c.sessions.remove(cs.id)
		}
		_, csrfToken := c.ensureCSRFToken(w, r)
		c.renderLogin(w, form, res.Error, csrfToken)
		return
	}

	cs.markVerified(time.Now())
	if created {
		c.setSessionCookie(w, r, cs.id)
	}

	c.logger.Info("console login successful", "email", form.Email)
	http.Redirect(w, r, guard.ReturnTo(form.From, "/admin/"), http.StatusSeeOther)
}

// handleLogout ends the backend session and forgets the browser
func (c *Console) handleLogout(w http.ResponseWriter, r *http.Request) {
	cs := consoleFrom(r)

	if err := r.ParseForm(); err == nil && !validateCSRF(r) {
		c.logger.Warn("logout request with invalid CSRF token")
	}

	if cs != nil {
		if err := cs.store.Logout(r.Context()); err != nil {
			c.logger.Warn("backend logout failed", "error", err)
		}
		c.sessions.remove(cs.id)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     ConsoleCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, guard.DefaultLoginPath, http.StatusSeeOther)
}

// handleLoading is shown while the session check is still pending.
func (c *Console) handleLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	c.render(w, "loading", http.StatusServiceUnavailable, pageData{Title: "Loading"})
}
