package adminhub

import (
	"context"
	"errors"
	"log"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/adminhub/internal"
	"github.com/MrEthical07/adminhub/jwt"
)

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.ledgerStore == nil {
		return ErrEngineNotReady
	}

	tokenID, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}

	accountID, err := e.ledgerStore.Revoke(ctx, internal.HashRefreshToken(refreshToken))
	if err != nil {
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	// Revocation is idempotent: logging out an already revoked or unknown
	// token succeeds so clients can retry safely.
	e.metricInc(MetricLogout)
	if accountID != "" {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAuditToken(ctx, auditEventLogout, true, accountID, "", tokenID.String(), nil, nil)

	return nil
}

// LogoutAll describes the logoutall operation and its observable behavior.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int, error) {
	if e == nil || e.ledgerStore == nil {
		return 0, ErrEngineNotReady
	}
	if accountID == "" {
		return 0, ErrValidation
	}

	revoked, err := e.ledgerStore.RevokeAllForAccount(ctx, accountID)
	if err != nil {
		return 0, errors.Join(ErrSessionInvalidationFailed, err)
	}

	e.metricInc(MetricLogoutAll)
	e.metricAdd(MetricSessionRevoked, uint64(revoked))
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked_tokens": itoa(revoked),
		}
	})

	return revoked, nil
}

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Token validation checks only the JWT signature and registered claims,
// never the ledger. Account existence and the active flag are re-checked
// against the provider so deactivation cuts access within one lookup, not
// one TTL.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Account, error) {
	if e == nil || e.jwtManager == nil || e.accountProvider == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.jwtManager.ParseAccess(accessToken)
	if e.metrics != nil {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !Role(claims.Role).Valid() {
		return nil, ErrTokenInvalid
	}

	account, err := e.accountProvider.GetAccountByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	if !account.Active {
		return nil, ErrAccountDisabled
	}

	return &account, nil
}

// Authorize describes the authorize operation and its observable behavior.
//
// Authorize may return an error when input validation, dependency calls, or security checks fail.
// Authorize does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authorize(account *Account, required Role) error {
	if account == nil {
		return ErrUnauthorized
	}
	if !required.Valid() {
		return ErrAccountRoleInvalid
	}
	if !account.Role.Satisfies(required) {
		return ErrPermissionDenied
	}
	return nil
}

// AccessClaimsFor parses an access token without role validation. Used by
// transport middleware that needs raw claims.
func (e *Engine) AccessClaimsFor(accessToken string) (*jwt.AccessClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	return e.jwtManager.ParseAccess(accessToken)
}

func (e *Engine) startSweeper() {
	interval := e.config.Ledger.SweepInterval
	if interval <= 0 {
		return
	}

	e.sweepStop = make(chan struct{})
	e.sweepWG.Add(1)
	go func() {
		defer e.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.sweepStop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				removed, err := e.ledgerStore.Sweep(ctx)
				cancel()
				if err != nil {
					log.Print("adminhub: ledger sweep failed")
					continue
				}
				e.metricAdd(MetricLedgerSweepRemoved, uint64(removed))
			}
		}
	}()
}
