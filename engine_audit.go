package adminhub

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventRefreshSuccess         = "refresh_success"
	auditEventRefreshInvalid         = "refresh_invalid"
	auditEventRefreshRateLimited     = "refresh_rate_limited"
	auditEventRefreshReuseDetected   = "refresh_reuse_detected"
	auditEventLogout                 = "logout"
	auditEventLogoutAll              = "logout_all"
	auditEventAccountCreated         = "account_created"
	auditEventAccountCreationFailure = "account_creation_failure"
	auditEventPasswordChanged        = "password_changed"
	auditEventPasswordChangeFailure  = "password_change_failure"
	auditEventAccountStatusChanged   = "account_status_changed"
)

// AuditErrorCode describes the auditerrorcode operation and its observable behavior.
//
// AuditErrorCode may return an error when input validation, dependency calls, or security checks fail.
// AuditErrorCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func AuditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrAccountExists):
		return "account_exists"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrAccountRoleInvalid):
		return "account_role_invalid"
	case errors.Is(err, ErrLoginRateLimited):
		return "login_rate_limited"
	case errors.Is(err, ErrRefreshRateLimited):
		return "refresh_rate_limited"
	case errors.Is(err, ErrRefreshReuse):
		return "refresh_reuse"
	case errors.Is(err, ErrRefreshInvalid):
		return "refresh_invalid"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrPasswordPolicy):
		return "password_policy"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSessionCreationFailed):
		return "session_creation_failed"
	case errors.Is(err, ErrSessionInvalidationFailed):
		return "session_invalidation_failed"
	case errors.Is(err, ErrLedgerUnavailable):
		return "ledger_unavailable"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrEngineNotReady):
		return "engine_not_ready"
	default:
		return "internal_error"
	}
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, accountID, email string, err error, metadataBuilder func() map[string]string) {
	e.emitAuditToken(ctx, eventType, success, accountID, email, "", err, metadataBuilder)
}

func (e *Engine) emitAuditToken(ctx context.Context, eventType string, success bool, accountID, email, tokenID string, err error, metadataBuilder func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		AccountID: accountID,
		Email:     email,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     AuditErrorCode(err),
	}
	// Metadata is built lazily so disabled audit pipelines pay nothing.
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}

	e.audit.Emit(ctx, event)
}
