// ABOUTME: Authenticated identity as returned by the backend session endpoints
// ABOUTME: Keeps tenant fields typed and every other server field in an extension map

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// Identity is the authenticated principal. DBName and TwilioNumber are fixed
// when the session is established; the store only hands out copies.
type Identity struct {
	Email        string
	DBName       string
	TwilioNumber string
	// Extra holds every other field the backend supplied.
	Extra map[string]any
}

var errNoEmail = errors.New("identity has no email")

// ParseIdentity decodes the backend "user" object.
func ParseIdentity(raw json.RawMessage) (Identity, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Identity{}, fmt.Errorf("decoding user: %w", err)
	}
	if fields == nil {
		return Identity{}, errNoEmail
	}

	id := Identity{Extra: make(map[string]any)}
	for k, v := range fields {
		switch k {
		case "email":
			id.Email, _ = v.(string)
		case "db_name":
			id.DBName, _ = v.(string)
		case "twilio_number":
			id.TwilioNumber, _ = v.(string)
		default:
			id.Extra[k] = v
		}
	}
	if id.Email == "" {
		return Identity{}, errNoEmail
	}
	return id, nil
}

// clone returns a deep-enough copy for handing out to readers.
func (id Identity) clone() Identity {
	id.Extra = maps.Clone(id.Extra)
	return id
}
