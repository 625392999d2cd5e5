// Package rate provides internal primitives used to build Redis-backed rate limit keys,
// errors, and limiter behavior for security-sensitive authentication workflows.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  — login per-email
//   - ali: — login per-IP
//   - ar:  — refresh per-IP
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in the root package).
//   - Be imported outside the adminhub module.
package rate
