// Package adminhub provides the authentication core of the adminhub backend:
// JWT access tokens, rotating opaque refresh tokens with reuse detection, and
// a Redis-backed token ledger.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// adminhub is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Account, SessionResult, MetricsSnapshot, etc.). Token
// signing lives in jwt/, ledger persistence in ledger/, password hashing in
// password/, and HTTP glue in httpd/. The Engine never talks to Postgres
// directly; accounts reach it through the [AccountProvider] interface.
//
// # What this package must NOT do
//
//   - Expose Redis clients, ledger encoding, or raw token material in its
//     public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Import any sub-package that re-imports adminhub (no import cycles).
//
// # Security contract
//
// Refresh is the security-critical path. Consuming a refresh token is a
// single atomic compare-and-set inside the ledger: a token value presented
// twice, whether concurrently or days apart, resolves to exactly one
// successful rotation, and every other presentation revokes the whole
// account's token set.
package adminhub
