// Package middleware exposes HTTP middleware adapters enforcing
// authentication and role-based authorization on top of adminhub.Engine.
//
// # Guards
//
//   - [Guard] — authenticates the request token and enforces a minimum role.
//   - [RequireAdmin] — any active admin or super-admin passes.
//   - [RequireSuperAdmin] — only super-admins pass.
//
// Each guard reads the Authorization bearer header with an accessToken
// cookie fallback, calls Engine.Authenticate and Engine.Authorize, and
// injects the authenticated account into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or Postgres (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Authorize.
package middleware
