// Package backend is the HTTP client for the Posible backend REST API.
//
// # Overview
//
// A Client is constructed once per session with a base URL and a
// cookie-bearing http.Client. The backend identifies the caller by its
// session cookie; no bearer tokens are sent.
//
//	c, err := backend.New("https://posible.example.com",
//	    backend.WithTimeout(15*time.Second),
//	    backend.WithLogger(logger),
//	)
//
// # Tenant Scoping
//
// Every tenant-scoped operation takes the tenant database name (and, where
// the endpoint needs one, a phone number) as an explicit argument. Values are
// path-escaped into the request path, never the query string:
//
//	GET /api/schedules/{db_name}[/{phone_number}]
//
// An empty segment is omitted, which lets the backend apply its own default
// tenant.
//
// # Errors
//
// Operations fail with one of three error types:
//
//   - *TransportError: the request never produced a response
//   - *StatusError: the backend answered with a non-2xx status
//   - *APIError: the backend answered 2xx with "success": false
//
// A nil error therefore means transport and payload both succeeded.
// UserMessage converts any of them into inline display text.
package backend
