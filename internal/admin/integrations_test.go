// ABOUTME: Tests for integration display helpers
// ABOUTME: Provider name fallbacks and connected-since date parsing

package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/posible/posible-admin/internal/backend"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Square POS", DisplayName(backend.Integration{Provider: "square", Name: "Square POS"}))
	assert.Equal(t, "Clover", DisplayName(backend.Integration{Provider: "clover"}))
	assert.Equal(t, "Lightspeed", DisplayName(backend.Integration{Provider: "lightspeed"}))
	assert.Equal(t, "", DisplayName(backend.Integration{}))
}

func TestConnectedSince(t *testing.T) {
	tests := []struct {
		name string
		in   backend.Integration
		want string
	}{
		{"rfc3339", backend.Integration{Connected: true, ConnectedAt: "2024-03-05T10:00:00Z"}, "Mar 5, 2024"},
		{"python isoformat", backend.Integration{Connected: true, ConnectedAt: "2024-11-20T08:30:00.123456"}, "Nov 20, 2024"},
		{"date only", backend.Integration{Connected: true, ConnectedAt: "2025-01-02"}, "Jan 2, 2025"},
		{"unparsable", backend.Integration{Connected: true, ConnectedAt: "last tuesday"}, ""},
		{"not connected", backend.Integration{Connected: false, ConnectedAt: "2024-03-05T10:00:00Z"}, ""},
		{"empty", backend.Integration{Connected: true}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnectedSince(tt.in))
		})
	}
}
