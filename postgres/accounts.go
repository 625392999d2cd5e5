package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	adminhub "github.com/MrEthical07/adminhub"
)

// AccountStore persists accounts in Postgres and satisfies
// [adminhub.AccountProvider]. Email lookups are case-insensitive via the
// lower(email) unique index.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an [AccountStore] on the shared pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountColumns = `id, name, email, password_hash, role, active, last_login_at, created_at`

func scanAccount(row pgx.Row) (adminhub.Account, error) {
	var (
		account     adminhub.Account
		lastLoginAt *time.Time
	)
	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.Active,
		&lastLoginAt,
		&account.CreatedAt,
	)
	if err != nil {
		return adminhub.Account{}, err
	}
	if lastLoginAt != nil {
		account.LastLoginAt = *lastLoginAt
	}
	return account, nil
}

// GetAccountByEmail describes the getaccountbyemail operation and its observable behavior.
//
// GetAccountByEmail may return an error when input validation, dependency calls, or security checks fail.
// GetAccountByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (adminhub.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`,
		email,
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return adminhub.Account{}, adminhub.ErrProviderNotFound
		}
		return adminhub.Account{}, fmt.Errorf("%w: %v", adminhub.ErrProviderUnavailable, err)
	}
	return account, nil
}

// GetAccountByID describes the getaccountbyid operation and its observable behavior.
//
// GetAccountByID may return an error when input validation, dependency calls, or security checks fail.
// GetAccountByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (adminhub.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`,
		id,
	)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return adminhub.Account{}, adminhub.ErrProviderNotFound
		}
		return adminhub.Account{}, fmt.Errorf("%w: %v", adminhub.ErrProviderUnavailable, err)
	}
	return account, nil
}

// CreateAccount describes the createaccount operation and its observable behavior.
//
// CreateAccount may return an error when input validation, dependency calls, or security checks fail.
// CreateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *AccountStore) CreateAccount(ctx context.Context, input adminhub.CreateAccountInput) (adminhub.Account, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, role, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		id, input.Name, input.Email, input.PasswordHash, input.Role, input.Active, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return adminhub.Account{}, adminhub.ErrProviderDuplicateEmail
		}
		return adminhub.Account{}, fmt.Errorf("%w: %v", adminhub.ErrProviderUnavailable, err)
	}

	return adminhub.Account{
		ID:           id,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Active:       input.Active,
		CreatedAt:    now,
	}, nil
}

// UpdateLastLogin describes the updatelastlogin operation and its observable behavior.
//
// UpdateLastLogin may return an error when input validation, dependency calls, or security checks fail.
// UpdateLastLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *AccountStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx,
		`UPDATE accounts SET last_login_at = $1, updated_at = now() WHERE id = $2`,
		at.UTC(), id,
	)
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
//
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
// UpdatePasswordHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *AccountStore) UpdatePasswordHash(ctx context.Context, id string, newHash string) error {
	return s.update(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = now() WHERE id = $2`,
		newHash, id,
	)
}

// SetAccountActive describes the setaccountactive operation and its observable behavior.
//
// SetAccountActive may return an error when input validation, dependency calls, or security checks fail.
// SetAccountActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *AccountStore) SetAccountActive(ctx context.Context, id string, active bool) error {
	return s.update(ctx,
		`UPDATE accounts SET active = $1, updated_at = now() WHERE id = $2`,
		active, id,
	)
}

func (s *AccountStore) update(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", adminhub.ErrProviderUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return adminhub.ErrProviderNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
