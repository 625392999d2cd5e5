// Package ledger implements the Redis-backed refresh token ledger.
//
// Every refresh token ever issued gets its own row, keyed by the SHA-256
// hash of the token value. Rows carry the owning account, a revoked flag,
// and issue/expiry timestamps in a compact binary encoding. Rows outlive
// their tokens: a revoked row is retained past expiry so that late replays
// of consumed tokens are still recognized as reuse.
//
// # Design
//
// Consuming a token is a single Lua compare-and-set: the script reads the
// row, checks the revoked flag before the expiry timestamp, and flips the
// flag in place. Exactly one concurrent caller observes the active state.
//
// # Architecture boundaries
//
// This package owns row encoding, key layout, and all Redis access for
// refresh tokens. Token generation and the reuse-escalation policy live in
// the root package.
//
// # What this package must NOT do
//
//   - See plaintext token values (callers pass SHA-256 hashes).
//   - Issue JWTs or touch account data.
//   - Import the root package or any sibling package.
package ledger
