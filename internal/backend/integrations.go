// ABOUTME: POS integration endpoints (Square, Clover, Toast)
// ABOUTME: Lists integrations, starts OAuth connects, disconnects, tests, and stores Toast keys

package backend

import (
	"context"
	"net/http"
)

// Integration is the connection state of one POS provider.
type Integration struct {
	Provider    string `json:"provider"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Connected   bool   `json:"connected"`
	ConnectedAt string `json:"connected_at,omitempty"`
	MerchantID  string `json:"merchant_id,omitempty"`
}

type integrationsResponse struct {
	Envelope
	Integrations []Integration `json:"integrations"`
}

type connectResponse struct {
	Envelope
	AuthURL string `json:"auth_url"`
}

// toastKeyRequest carries a nil RestaurantGUID as JSON null.
type toastKeyRequest struct {
	APIKey         string  `json:"api_key"`
	RestaurantGUID *string `json:"restaurant_guid"`
}

// ListIntegrations returns every provider and whether dbName is connected to it.
func (c *Client) ListIntegrations(ctx context.Context, dbName string) ([]Integration, error) {
	var resp integrationsResponse
	if err := c.doJSON(ctx, "list integrations", http.MethodGet, tenantPath("/api/integrations", dbName), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Integrations, nil
}

// ConnectIntegration starts the OAuth flow for provider and returns the
// authorization URL the user must visit.
func (c *Client) ConnectIntegration(ctx context.Context, dbName, provider string) (string, error) {
	var resp connectResponse
	path := tenantPath("/api/integrations", dbName, provider, "connect")
	if err := c.doJSON(ctx, "connect integration", http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.AuthURL == "" {
		return "", &APIError{Op: "connect integration", Message: "Failed to initiate connection"}
	}
	return resp.AuthURL, nil
}

// DisconnectIntegration removes the connection to provider.
func (c *Client) DisconnectIntegration(ctx context.Context, dbName, provider string) error {
	var resp Envelope
	return c.doJSON(ctx, "disconnect integration", http.MethodDelete, tenantPath("/api/integrations", dbName, provider), nil, &resp)
}

// TestIntegration asks the backend to exercise the stored provider credentials.
func (c *Client) TestIntegration(ctx context.Context, dbName, provider string) error {
	var resp Envelope
	path := tenantPath("/api/integrations", dbName, provider, "test")
	return c.doJSON(ctx, "test integration", http.MethodGet, path, nil, &resp)
}

// SaveToastAPIKey stores Toast credentials. An empty restaurantGUID is sent as null.
func (c *Client) SaveToastAPIKey(ctx context.Context, dbName, apiKey, restaurantGUID string) error {
	var resp Envelope
	body := toastKeyRequest{APIKey: apiKey}
	if restaurantGUID != "" {
		body.RestaurantGUID = &restaurantGUID
	}
	path := tenantPath("/api/integrations", dbName, "toast", "api-key")
	return c.doJSON(ctx, "save toast api key", http.MethodPost, path, body, &resp)
}
