// Package httpd exposes the HTTP API: the auth endpoints backed by
// adminhub.Engine, and the thin CRUD surface for blogs, contact forms,
// and subscriptions.
//
// # Conventions
//
// Every response uses the envelope {"success":bool, ...}: data on
// success, a stable message on failure. Engine error kinds map to
// statuses (validation 400, credential/token failures 401, role 403,
// missing 404, throttles 429, everything else 500). Refresh tokens
// travel only in an HttpOnly cookie; access tokens in the JSON body.
//
// # What this package must NOT do
//
//   - Inspect or construct tokens (engine and middleware concerns).
//   - Talk to Redis directly.
package httpd
