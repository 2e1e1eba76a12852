// ABOUTME: Tenant context derived from the current session identity
// ABOUTME: Resolves db_name and twilio_number under a strict or permissive policy

package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/posible/posible-admin/internal/session"
)

// Mode selects how a missing tenant value is handled.
type Mode string

const (
	// Strict fails when the identity lacks the value.
	Strict Mode = "strict"
	// Permissive substitutes the configured fallback.
	Permissive Mode = "permissive"
)

var (
	// ErrNoTenant is the root of every missing-tenant error.
	ErrNoTenant = errors.New("tenant context not available")
	// ErrNoDBName reports an identity without a database name.
	ErrNoDBName = fmt.Errorf("%w: database name missing", ErrNoTenant)
	// ErrNoTwilioNumber reports an identity without a routing number.
	ErrNoTwilioNumber = fmt.Errorf("%w: twilio number missing", ErrNoTenant)
)

// ParseMode parses a configured mode. Empty means Strict.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Strict:
		return Strict, nil
	case Permissive:
		return Permissive, nil
	default:
		return "", fmt.Errorf("unknown tenant mode %q (want strict or permissive)", s)
	}
}

// Policy is the per-deployment tenant resolution rule.
type Policy struct {
	Mode                 Mode
	FallbackDBName       string
	FallbackTwilioNumber string
}

// IdentitySource yields the current identity, if any. *session.Store
// satisfies it.
type IdentitySource interface {
	Identity() (session.Identity, bool)
}

// Context is a read-only view of the tenant behind a session.
type Context struct {
	source IdentitySource
	policy Policy
}

// New returns a Context reading from source under policy.
func New(source IdentitySource, policy Policy) *Context {
	if policy.Mode == "" {
		policy.Mode = Strict
	}
	return &Context{source: source, policy: policy}
}

// Policy returns the policy in force.
func (c *Context) Policy() Policy {
	return c.policy
}

// DBName returns the tenant database identifier.
func (c *Context) DBName() (string, error) {
	return c.resolve(func(id session.Identity) string { return id.DBName }, c.policy.FallbackDBName, ErrNoDBName)
}

// TwilioNumber returns the tenant routing number.
func (c *Context) TwilioNumber() (string, error) {
	return c.resolve(func(id session.Identity) string { return id.TwilioNumber }, c.policy.FallbackTwilioNumber, ErrNoTwilioNumber)
}

func (c *Context) resolve(field func(session.Identity) string, fallback string, missing error) (string, error) {
	if id, ok := c.source.Identity(); ok {
		if v := field(id); v != "" {
			return v, nil
		}
	}
	if c.policy.Mode == Permissive {
		return fallback, nil
	}
	return "", missing
}
