package adminhub

import (
	"context"
	"time"
)

// Role is the access level assigned to an account. Only two levels exist;
// SuperAdmin strictly dominates Admin.
//
//	Docs: docs/roles.md
type Role string

const (
	// RoleAdmin is an exported constant or variable used by the authentication engine.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin is an exported constant or variable used by the authentication engine.
	RoleSuperAdmin Role = "super-admin"
)

// Valid reports whether r is one of the two recognized roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Satisfies reports whether r grants at least the access level of required.
// SuperAdmin satisfies everything; Admin satisfies only Admin.
func (r Role) Satisfies(required Role) bool {
	if r == RoleSuperAdmin {
		return required.Valid()
	}
	return r == RoleAdmin && required == RoleAdmin
}

// Account is the full account record exchanged with [AccountProvider].
// It carries the credential hash, role, and lifecycle flags. PasswordHash
// never leaves the engine boundary.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// AccountProvider is the primary interface that callers must implement to
// integrate the engine with their account database. Lookups by email must be
// case-insensitive; CreateAccount must reject duplicate emails with
// [ErrProviderDuplicateEmail].
//
//	Docs: docs/engine.md
type AccountProvider interface {
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id string, newHash string) error
	SetAccountActive(ctx context.Context, id string, active bool) error
}

// CreateAccountInput is the input for [AccountProvider.CreateAccount].
// Email is already normalized to lower case by the engine.
type CreateAccountInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
}

// RegisterRequest is the input for [Engine.Register]. Email and Password are
// required; Name is the display name shown in admin listings; Role defaults
// to [RoleAdmin] when empty.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// SessionResult is returned by [Engine.Login] and [Engine.Register]. It
// carries the authenticated account alongside a freshly issued token pair.
type SessionResult struct {
	Account      Account
	AccessToken  string
	RefreshToken string
}
