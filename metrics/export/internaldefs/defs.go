package internaldefs

import (
	adminhub "github.com/MrEthical07/adminhub"
)

// CounterDef defines a public type used by adminhub APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   adminhub.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by adminhub APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   adminhub.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: adminhub.MetricLoginSuccess, Name: "adminhub_login_success_total", Help: "Successful login attempts."},
	{ID: adminhub.MetricLoginFailure, Name: "adminhub_login_failure_total", Help: "Failed login attempts."},
	{ID: adminhub.MetricLoginRateLimited, Name: "adminhub_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: adminhub.MetricRefreshSuccess, Name: "adminhub_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: adminhub.MetricRefreshFailure, Name: "adminhub_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: adminhub.MetricRefreshReuseDetected, Name: "adminhub_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: adminhub.MetricRefreshRateLimited, Name: "adminhub_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: adminhub.MetricSessionCreated, Name: "adminhub_session_created_total", Help: "Issued refresh sessions."},
	{ID: adminhub.MetricSessionRevoked, Name: "adminhub_session_revoked_total", Help: "Revoked refresh tokens."},
	{ID: adminhub.MetricLogout, Name: "adminhub_logout_total", Help: "Single-token logout operations."},
	{ID: adminhub.MetricLogoutAll, Name: "adminhub_logout_all_total", Help: "Logout-all operations."},
	{ID: adminhub.MetricAccountCreationSuccess, Name: "adminhub_account_creation_success_total", Help: "Successful account creations."},
	{ID: adminhub.MetricAccountCreationFailure, Name: "adminhub_account_creation_failure_total", Help: "Failed account creations."},
	{ID: adminhub.MetricAccountCreationDuplicate, Name: "adminhub_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: adminhub.MetricPasswordChangeSuccess, Name: "adminhub_password_change_success_total", Help: "Successful password changes."},
	{ID: adminhub.MetricPasswordChangeInvalidOld, Name: "adminhub_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: adminhub.MetricAccountDisabled, Name: "adminhub_account_disabled_total", Help: "Account disable operations."},
	{ID: adminhub.MetricLedgerSweepRemoved, Name: "adminhub_ledger_sweep_removed_total", Help: "Stale index entries removed by the ledger sweep."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: adminhub.MetricAuthenticateLatency, Name: "adminhub_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
