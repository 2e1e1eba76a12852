// ABOUTME: Tenant user management endpoints
// ABOUTME: List, create, and delete the phone users of a tenant database

package backend

import (
	"context"
	"net/http"
)

// User is a phone user of a tenant.
type User struct {
	Name       string `json:"name"`
	FromNumber string `json:"from_number"`
	IsAdmin    bool   `json:"is_admin"`
}

// NewUser is the payload for creating a user.
type NewUser struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	IsAdmin     bool   `json:"is_admin"`
}

type usersResponse struct {
	Envelope
	Users []User `json:"users"`
}

// ListUsers returns the users of dbName.
func (c *Client) ListUsers(ctx context.Context, dbName string) ([]User, error) {
	var resp usersResponse
	if err := c.doJSON(ctx, "list users", http.MethodGet, tenantPath("/api/users", dbName), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// CreateUser adds a user to dbName.
func (c *Client) CreateUser(ctx context.Context, dbName string, user NewUser) error {
	var resp Envelope
	return c.doJSON(ctx, "create user", http.MethodPost, tenantPath("/api/users", dbName), user, &resp)
}

// DeleteUser removes the user with phoneNumber from dbName.
func (c *Client) DeleteUser(ctx context.Context, dbName, phoneNumber string) error {
	var resp Envelope
	return c.doJSON(ctx, "delete user", http.MethodDelete, tenantPath("/api/users", dbName, phoneNumber), nil, &resp)
}
