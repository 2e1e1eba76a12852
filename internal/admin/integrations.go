// ABOUTME: Display helpers for POS integrations
// ABOUTME: Provider names and connected-since dates shared by the web console and CLI

package admin

import (
	"strings"
	"time"

	"github.com/posible/posible-admin/internal/backend"
)

// ConnectedDateLayout is how connected-since dates are shown.
const ConnectedDateLayout = "Jan 2, 2006"

var providerNames = map[string]string{
	"square": "Square",
	"clover": "Clover",
	"toast":  "Toast",
}

// backend timestamps arrive with or without a zone
var connectedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DisplayName returns the name to show for an integration.
func DisplayName(in backend.Integration) string {
	if in.Name != "" {
		return in.Name
	}
	if name, ok := providerNames[in.Provider]; ok {
		return name
	}
	if in.Provider == "" {
		return ""
	}
	return strings.ToUpper(in.Provider[:1]) + in.Provider[1:]
}

// ConnectedSince formats in.ConnectedAt for display. It returns "" when the
// integration is not connected or the date cannot be parsed.
func ConnectedSince(in backend.Integration) string {
	if !in.Connected || in.ConnectedAt == "" {
		return ""
	}
	for _, layout := range connectedAtLayouts {
		if t, err := time.Parse(layout, in.ConnectedAt); err == nil {
			return t.Format(ConnectedDateLayout)
		}
	}
	return ""
}
