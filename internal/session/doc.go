// Package session tracks whether the console is signed in to the backend.
//
// # States
//
// A Store starts Pending. CheckSession settles it exactly once to
// Authenticated (identity present) or Unauthenticated (identity absent); any
// transport, status or decode failure counts as Unauthenticated. Only an
// explicit CheckSession moves a settled store back to Pending.
//
// # Operations
//
//   - CheckSession: GET /api/auth/session
//   - Login: POST /api/auth/login, failures returned as LoginResult data
//   - Logout: POST /api/auth/logout, local state cleared unconditionally
//
// The session itself lives in the backend client's cookie jar. The identity
// is held only in memory and is re-derived from the backend on every load.
package session
