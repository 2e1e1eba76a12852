// Package webconsole provides the server-rendered Posible admin console.
//
// # Overview
//
// A browser gets its own console session, keyed by a random cookie, when it
// logs in successfully. Requests without a live session never reach the
// backend. A console session owns a backend client with a private cookie
// jar, a session store, the tenant context derived from it, and the screen
// state built on top (dashboard loader, chat transcript). Idle console
// sessions are evicted by a background cleanup loop, signed-out ones sooner.
//
// # Routes
//
//   - GET/POST /admin/login, POST /admin/logout
//   - GET /admin/ (dashboard)
//   - GET/POST /admin/users, POST /admin/users/{phone}/delete
//   - GET/POST /admin/schedules, POST /admin/schedules/{id}/delete
//   - GET/POST /admin/upload
//   - GET /admin/integrations and POST .../{provider}/connect|disconnect|test,
//     POST /admin/integrations/toast/api-key
//   - GET/POST /admin/chat
//   - GET /health
//
// Every route but login, logout and health goes through the route guard.
// An authenticated session is confirmed with the backend again every
// RecheckInterval. While that check is in flight the guard waits briefly,
// then shows a self-refreshing loading page. Unauthenticated requests are sent to
// /admin/login?from=<requested path> and the login handler returns there.
//
// # OAuth Connect
//
// Connecting a provider renders a page that opens the backend's auth_url in a
// popup, polls for the popup to close, waits and reloads the integrations
// list. The console never reads a result from the popup.
//
// # CSRF Protection
//
// All form submissions require CSRF tokens:
//
//	<input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
//
// The token is a double-submit cookie scoped to /admin.
package webconsole
