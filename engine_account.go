package adminhub

import (
	"context"
	"errors"
	"log"
	"strings"
)

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*SessionResult, error) {
	if e == nil || e.passwordHash == nil || e.accountProvider == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.AllowRegistration {
		return nil, ErrPermissionDenied
	}

	email := NormalizeEmail(req.Email)
	if !validEmail(email) {
		return nil, ErrValidation
	}

	role := req.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	if !role.Valid() {
		return nil, ErrAccountRoleInvalid
	}

	name := strings.TrimSpace(req.Name)
	if len(name) > 255 {
		return nil, ErrValidation
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		e.metricInc(MetricAccountCreationFailure)
		return nil, errors.Join(ErrPasswordPolicy, err)
	}
	req.Password = ""

	account, err := e.accountProvider.CreateAccount(ctx, CreateAccountInput{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateEmail) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", email, ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		e.metricInc(MetricAccountCreationFailure)
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", email, ErrProviderUnavailable, nil)
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	access, refresh, tokenID, err := e.issueTokenPair(ctx, &account)
	if err != nil {
		e.metricInc(MetricAccountCreationFailure)
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAuditToken(ctx, auditEventAccountCreated, true, account.ID, email, tokenID, nil, nil)

	return &SessionResult{
		Account:      account,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.accountProvider == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrValidation
	}

	account, err := e.accountProvider.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return ErrAccountNotFound
		}
		return errors.Join(ErrProviderUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(oldPassword, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, accountID, account.Email, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	oldPassword = ""

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return errors.Join(ErrPasswordPolicy, err)
	}
	newPassword = ""

	if err := e.accountProvider.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		return errors.Join(ErrProviderUnavailable, err)
	}

	// A password change invalidates every outstanding refresh token so
	// stolen tokens die with the old credential.
	revoked, err := e.ledgerStore.RevokeAllForAccount(ctx, accountID)
	if err != nil {
		log.Print("adminhub: revocation after password change failed")
	} else {
		e.metricAdd(MetricSessionRevoked, uint64(revoked))
	}

	if e.rateLimiter != nil {
		ip := clientIPFromContext(ctx)
		if err := e.rateLimiter.ResetLogin(ctx, account.Email, ip); err != nil {
			log.Print("adminhub: login limiter reset failed")
		}
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChanged, true, accountID, account.Email, nil, func() map[string]string {
		return map[string]string{
			"revoked_tokens": itoa(revoked),
		}
	})

	return nil
}

// SetAccountActive describes the setaccountactive operation and its observable behavior.
//
// SetAccountActive may return an error when input validation, dependency calls, or security checks fail.
// SetAccountActive does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	if e == nil || e.accountProvider == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrValidation
	}

	if err := e.accountProvider.SetAccountActive(ctx, accountID, active); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return ErrAccountNotFound
		}
		return errors.Join(ErrProviderUnavailable, err)
	}

	if !active {
		revoked, err := e.ledgerStore.RevokeAllForAccount(ctx, accountID)
		if err != nil {
			log.Print("adminhub: revocation for disabled account failed")
		} else {
			e.metricAdd(MetricSessionRevoked, uint64(revoked))
		}
		e.metricInc(MetricAccountDisabled)
	}

	e.emitAudit(ctx, auditEventAccountStatusChanged, true, accountID, "", nil, func() map[string]string {
		return map[string]string{
			"active": boolString(active),
		}
	})

	return nil
}

func validEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.IndexByte(email[at+1:], '@') != -1 {
		return false
	}
	return true
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
