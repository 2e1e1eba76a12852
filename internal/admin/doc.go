// Package admin is the tenant-scoped API used by the console screens.
//
// # Overview
//
// API wraps a backend client and a tenant.Context. Every call resolves the
// tenant database name first and interpolates it into the request path; in
// strict mode a missing name fails with tenant.ErrNoDBName before any
// request is made.
//
// # Operations
//
// Users:
//
//   - Users, CreateUser, DeleteUser
//
// Scheduled reports:
//
//   - Schedules, CreateSchedule, EditSchedule, DeleteSchedule
//
// Chat, addressed with the tenant routing number:
//
//   - SendMessage, ConversationHistory
//
// Data import and POS integrations:
//
//   - UploadCSV
//   - Integrations, ConnectIntegration, DisconnectIntegration,
//     TestIntegration, SaveToastAPIKey
//
// # OAuth
//
// Connector drives the browser half of a POS OAuth connection: it opens the
// provider authorization URL in a Window, polls until the window closes and
// re-fetches the integration list.
//
// # Usage
//
//	api := admin.New(client, tenantCtx, logger)
//	users, err := api.Users(ctx)
package admin
