// Package internal contains helper utilities that are intentionally private to adminhub,
// including secure random token generation and refresh token encoding.
//
// # Sub-packages
//
//   - rate — Redis-backed fixed-window throttle primitives for login and refresh
//
// # What this package must NOT do
//
//   - Export types that appear in the public adminhub API.
//   - Be imported by any package outside the adminhub module.
package internal
