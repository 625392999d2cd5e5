package adminhub

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/adminhub/internal"
	"github.com/MrEthical07/adminhub/internal/rate"
	"github.com/MrEthical07/adminhub/jwt"
	"github.com/MrEthical07/adminhub/ledger"
	"github.com/MrEthical07/adminhub/password"
)

// Engine defines a public type used by adminhub APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config          Config
	ledgerStore     *ledger.Store
	rateLimiter     *rate.Limiter
	audit           *auditDispatcher
	metrics         *Metrics
	passwordHash    *password.Argon2
	jwtManager      *jwt.Manager
	accountProvider AccountProvider

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweepStop != nil {
			close(e.sweepStop)
			e.sweepWG.Wait()
		}
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(id, n)
}

// NormalizeEmail lowers and trims an email for case-insensitive lookup.
// All engine entry points apply it before touching the provider.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, email, pass string) (*SessionResult, error) {
	if e == nil || e.passwordHash == nil || e.accountProvider == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	email = NormalizeEmail(email)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, email, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", email, ErrLoginRateLimited, nil)
			return nil, ErrLoginRateLimited
		}
	}

	if email == "" || pass == "" {
		e.recordLoginFailure(ctx, email, ip, "empty_input")
		return nil, ErrInvalidCredentials
	}

	account, err := e.accountProvider.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			e.recordLoginFailure(ctx, email, ip, "account_not_found")
			return nil, ErrInvalidCredentials
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", email, ErrProviderUnavailable, nil)
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		e.recordLoginFailure(ctx, email, ip, "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	if !account.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwordHash.NeedsUpgrade(account.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwordHash.Hash(pass); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.accountProvider.UpdatePasswordHash(ctx, account.ID, upgradedHash); err != nil {
					log.Print("adminhub: password hash upgrade update failed")
				}
			} else {
				log.Print("adminhub: password hash upgrade generation failed")
			}
		}
	}
	pass = ""

	access, refresh, tokenID, err := e.issueTokenPair(ctx, &account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, ErrSessionCreationFailed, nil)
		return nil, errors.Join(ErrSessionCreationFailed, err)
	}

	now := time.Now()
	// Last-login is best-effort bookkeeping; a provider hiccup must not
	// fail an otherwise valid login.
	if err := e.accountProvider.UpdateLastLogin(ctx, account.ID, now); err != nil {
		log.Print("adminhub: last login update failed")
	} else {
		account.LastLoginAt = now
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, email, ip); err != nil {
			log.Print("adminhub: login limiter reset failed")
		}
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAuditToken(ctx, auditEventLoginSuccess, true, account.ID, email, tokenID, nil, nil)

	return &SessionResult{
		Account:      account,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, ip, reason string) {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, email, ip); err != nil &&
			!errors.Is(err, rate.ErrRateLimited) {
			log.Print("adminhub: login limiter increment failed")
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", email, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || e.ledgerStore == nil || e.accountProvider == nil {
		return "", "", ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRefresh(ctx, ip); err != nil {
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", "", ErrRefreshRateLimited, nil)
			return "", "", ErrRefreshRateLimited
		}
	}

	tokenID, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return "", "", ErrRefreshInvalid
	}

	accountID, err := e.ledgerStore.ConsumeIfActive(ctx, internal.HashRefreshToken(refreshToken))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTokenReused):
			// Reuse of a consumed or revoked token is treated as theft:
			// the whole account token set is revoked, not just this chain.
			revoked, revokeErr := e.ledgerStore.RevokeAllForAccount(ctx, accountID)
			if revokeErr != nil {
				log.Print("adminhub: mass revocation after reuse failed")
			}
			e.metricInc(MetricRefreshReuseDetected)
			e.metricAdd(MetricSessionRevoked, uint64(revoked))
			e.emitAuditToken(ctx, auditEventRefreshReuseDetected, false, accountID, "", tokenID.String(), ErrRefreshReuse, func() map[string]string {
				return map[string]string{
					"revoked_tokens": itoa(revoked),
				}
			})
			return "", "", ErrRefreshReuse
		case errors.Is(err, ledger.ErrTokenNotFound), errors.Is(err, ledger.ErrTokenExpired):
			// Expired-but-unrevoked is a stale client, not an attack; no
			// escalation beyond rejecting the call.
			e.metricInc(MetricRefreshFailure)
			e.emitAuditToken(ctx, auditEventRefreshInvalid, false, accountID, "", tokenID.String(), ErrRefreshInvalid, nil)
			return "", "", ErrRefreshInvalid
		case errors.Is(err, ledger.ErrRecordCorrupt):
			e.metricInc(MetricRefreshFailure)
			e.emitAuditToken(ctx, auditEventRefreshInvalid, false, "", "", tokenID.String(), ErrRefreshInvalid, func() map[string]string {
				return map[string]string{
					"reason": "record_corrupt",
				}
			})
			return "", "", ErrRefreshInvalid
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAuditToken(ctx, auditEventRefreshInvalid, false, "", "", tokenID.String(), ErrLedgerUnavailable, nil)
			return "", "", errors.Join(ErrLedgerUnavailable, err)
		}
	}

	account, err := e.accountProvider.GetAccountByID(ctx, accountID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrProviderNotFound) {
			e.emitAuditToken(ctx, auditEventRefreshInvalid, false, accountID, "", tokenID.String(), ErrRefreshInvalid, nil)
			return "", "", ErrRefreshInvalid
		}
		e.emitAuditToken(ctx, auditEventRefreshInvalid, false, accountID, "", tokenID.String(), ErrProviderUnavailable, nil)
		return "", "", errors.Join(ErrProviderUnavailable, err)
	}

	if !account.Active {
		revoked, revokeErr := e.ledgerStore.RevokeAllForAccount(ctx, accountID)
		if revokeErr != nil {
			log.Print("adminhub: revocation for disabled account failed")
		}
		e.metricInc(MetricRefreshFailure)
		e.metricAdd(MetricSessionRevoked, uint64(revoked))
		e.emitAuditToken(ctx, auditEventRefreshInvalid, false, accountID, account.Email, tokenID.String(), ErrAccountDisabled, nil)
		return "", "", ErrAccountDisabled
	}

	access, refresh, nextTokenID, err := e.issueTokenPair(ctx, &account)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAuditToken(ctx, auditEventRefreshInvalid, false, accountID, account.Email, tokenID.String(), ErrSessionCreationFailed, nil)
		return "", "", errors.Join(ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAuditToken(ctx, auditEventRefreshSuccess, true, accountID, account.Email, nextTokenID, nil, nil)

	return access, refresh, nil
}

// issueTokenPair mints an access JWT and a fresh refresh token, and
// persists the refresh row. Every child token gets the full refresh TTL;
// the chain has no absolute lifetime cap.
func (e *Engine) issueTokenPair(ctx context.Context, account *Account) (access, refresh, tokenID string, err error) {
	tid, err := internal.NewTokenID()
	if err != nil {
		return "", "", "", err
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return "", "", "", err
	}

	refresh = internal.EncodeRefreshToken(tid, secret)
	now := time.Now()

	rec := &ledger.Record{
		AccountID: account.ID,
		Revoked:   false,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.JWT.RefreshTTL).Unix(),
	}
	if err := e.ledgerStore.Save(ctx, internal.HashRefreshToken(refresh), rec); err != nil {
		return "", "", "", err
	}

	access, err = e.jwtManager.CreateAccess(account.ID, account.Email, string(account.Role))
	if err != nil {
		return "", "", "", err
	}

	return access, refresh, tid.String(), nil
}

// LedgerPing reports ledger availability and round-trip latency. Intended
// for health endpoints.
func (e *Engine) LedgerPing(ctx context.Context) (time.Duration, error) {
	if e == nil || e.ledgerStore == nil {
		return 0, ErrEngineNotReady
	}
	return e.ledgerStore.Ping(ctx)
}

// ActiveTokenCount returns the number of live refresh tokens for an
// account. Admin/introspection use only.
func (e *Engine) ActiveTokenCount(ctx context.Context, accountID string) (int, error) {
	if e == nil || e.ledgerStore == nil {
		return 0, ErrEngineNotReady
	}
	return e.ledgerStore.ActiveTokenCount(ctx, accountID)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
