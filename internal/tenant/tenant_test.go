// ABOUTME: Tests for tenant context derivation
// ABOUTME: Strict and permissive resolution of db_name and twilio_number

package tenant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posible/posible-admin/internal/session"
)

type fixedSource struct {
	id *session.Identity
}

func (f fixedSource) Identity() (session.Identity, bool) {
	if f.id == nil {
		return session.Identity{}, false
	}
	return *f.id, true
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Strict, false},
		{"strict", Strict, false},
		{" Permissive ", Permissive, false},
		{"lenient", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrict(t *testing.T) {
	full := &session.Identity{Email: "a@b.com", DBName: "tenant1", TwilioNumber: "+15550001111"}
	partial := &session.Identity{Email: "a@b.com"}

	tests := []struct {
		name       string
		id         *session.Identity
		wantDB     string
		wantDBErr  error
		wantTel    string
		wantTelErr error
	}{
		{"full identity", full, "tenant1", nil, "+15550001111", nil},
		{"missing fields", partial, "", ErrNoDBName, "", ErrNoTwilioNumber},
		{"no identity", nil, "", ErrNoDBName, "", ErrNoTwilioNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(fixedSource{tt.id}, Policy{Mode: Strict, FallbackDBName: "ignored"})

			db, err := c.DBName()
			assert.Equal(t, tt.wantDB, db)
			assert.ErrorIs(t, err, tt.wantDBErr)

			tel, err := c.TwilioNumber()
			assert.Equal(t, tt.wantTel, tel)
			assert.ErrorIs(t, err, tt.wantTelErr)
		})
	}
}

func TestStrict_ErrorsShareRoot(t *testing.T) {
	c := New(fixedSource{}, Policy{})
	_, err := c.DBName()
	assert.True(t, errors.Is(err, ErrNoTenant))
	_, err = c.TwilioNumber()
	assert.True(t, errors.Is(err, ErrNoTenant))
	assert.Equal(t, Strict, c.Policy().Mode)
}

func TestPermissive(t *testing.T) {
	policy := Policy{Mode: Permissive, FallbackDBName: "demo", FallbackTwilioNumber: "+15559990000"}

	c := New(fixedSource{&session.Identity{Email: "a@b.com", DBName: "tenant1"}}, policy)
	db, err := c.DBName()
	require.NoError(t, err)
	assert.Equal(t, "tenant1", db)
	tel, err := c.TwilioNumber()
	require.NoError(t, err)
	assert.Equal(t, "+15559990000", tel)

	c = New(fixedSource{}, policy)
	db, err = c.DBName()
	require.NoError(t, err)
	assert.Equal(t, "demo", db)
}

func TestPermissive_NoFallbackYieldsEmpty(t *testing.T) {
	c := New(fixedSource{}, Policy{Mode: Permissive})
	db, err := c.DBName()
	require.NoError(t, err)
	assert.Empty(t, db)
}
