// Package postgres implements the Postgres-backed persistence layer:
// the [AccountStore] satisfying adminhub.AccountProvider, plus the
// content repositories for blogs, contact forms, and subscriptions.
//
// # Design
//
// All stores share one pgxpool.Pool owned by the caller; this package
// never closes it. Unique violations (SQLSTATE 23505) and missing rows
// (pgx.ErrNoRows) are mapped to sentinel errors at the store boundary so
// callers never see driver errors. Schema management is goose migrations
// embedded in the migrations subpackage, applied once at startup.
//
// # What this package must NOT do
//
//   - Hash passwords or validate credentials (engine concerns).
//   - Touch Redis or the token ledger.
//   - Hard-delete account rows.
package postgres
