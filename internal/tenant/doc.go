// Package tenant derives the tenant database identifier and routing number
// from the session identity.
//
// A Policy is chosen once per deployment. In strict mode a missing value is
// an error wrapping ErrNoTenant and callers must not issue the request. In
// permissive mode a missing value resolves to the configured fallback, or to
// "" when none is configured; the backend client then omits the path segment.
package tenant
