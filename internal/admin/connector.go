// ABOUTME: Browser half of the POS OAuth connection flow
// ABOUTME: Opens the authorization URL, polls for window closure, then refreshes integrations

package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/posible/posible-admin/internal/backend"
)

const (
	// DefaultPollInterval is how often the authorization window is checked.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultRefreshDelay is the pause between window closure and refetch.
	DefaultRefreshDelay = time.Second
)

// Window is an authorization window the user completes out of band. The
// flow never reads a result from it; closure is the only signal.
type Window interface {
	Open(ctx context.Context, url string) error
	Closed() bool
}

// Connector runs the OAuth connect flow for one API.
type Connector struct {
	api          *API
	pollInterval time.Duration
	refreshDelay time.Duration
}

// NewConnector returns a Connector using the default timings.
func NewConnector(api *API) *Connector {
	return &Connector{api: api, pollInterval: DefaultPollInterval, refreshDelay: DefaultRefreshDelay}
}

// WithTimings returns a copy of c using the given poll interval and refresh delay.
func (c *Connector) WithTimings(poll, refresh time.Duration) *Connector {
	cp := *c
	cp.pollInterval = poll
	cp.refreshDelay = refresh
	return &cp
}

// Connect requests an authorization URL for provider, opens it in w, waits
// for w to close and returns the refreshed integration list.
func (c *Connector) Connect(ctx context.Context, provider string, w Window) ([]backend.Integration, error) {
	authURL, err := c.api.ConnectIntegration(ctx, provider)
	if err != nil {
		return nil, err
	}
	if err := w.Open(ctx, authURL); err != nil {
		return nil, fmt.Errorf("opening authorization window: %w", err)
	}
	c.api.logger.Info("authorization window opened", "provider", provider)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for !w.Closed() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.refreshDelay):
	}
	return c.api.Integrations(ctx)
}
