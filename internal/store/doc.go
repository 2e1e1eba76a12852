// Package store persists the CLI's backend session between invocations using
// SQLite.
//
// # Architecture
//
// SQLiteStore is an http.CookieJar. Cookies live in an in-memory
// net/http/cookiejar (public suffix rules from golang.org/x/net) which does
// the domain and path matching; every SetCookies call is also written
// through to the cookies table and replayed into the jar on open.
//
// # Lifecycle
//
//   - Cookies deleted by the server (Max-Age < 0 or an expiry in the past)
//     are removed from the table.
//   - Expired rows are dropped on open.
//   - Clear purges every cookie, which is what logout does.
//
// The identity behind the session is never stored; it is re-derived from the
// backend on every run.
package store
