// ABOUTME: Session, login, and logout calls against the backend auth endpoints
// ABOUTME: Return the raw user payload so the session package owns identity decoding

package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// AuthResponse is the payload of the session and login endpoints.
type AuthResponse struct {
	Envelope
	Authenticated bool            `json:"authenticated"`
	User          json.RawMessage `json:"user,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session asks the backend whether the jar's cookie identifies a session.
// An unauthenticated session is not an error: check Authenticated.
func (c *Client) Session(ctx context.Context) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doJSON(ctx, "session", http.MethodGet, "/api/auth/session", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login establishes a backend session. The backend sets the session cookie
// on the response, which the jar keeps for every later request.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	body := loginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, "login", http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	var resp Envelope
	return c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, "", &resp, rejectExplicitFailure)
}
