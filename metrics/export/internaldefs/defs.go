package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef names one engine counter for exposition.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exposition.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs maps every engine counter to its stable exposition name.
// Both exporters iterate this slice, so names and order stay identical
// across Prometheus and OTel.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful login attempts."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Failed login attempts."},
	{ID: goIdentity.MetricLoginRateLimited, Name: "goidentity_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goIdentity.MetricAccountLocked, Name: "goidentity_account_locked_total", Help: "Logins rejected or failed into a lockout."},
	{ID: goIdentity.MetricMFARequired, Name: "goidentity_mfa_required_total", Help: "Logins parked pending MFA confirmation."},
	{ID: goIdentity.MetricMFASuccess, Name: "goidentity_mfa_success_total", Help: "Successful MFA confirmations."},
	{ID: goIdentity.MetricMFAFailure, Name: "goidentity_mfa_failure_total", Help: "Failed MFA confirmations."},
	{ID: goIdentity.MetricMFAAttemptsExceeded, Name: "goidentity_mfa_attempts_exceeded_total", Help: "MFA tickets invalidated by the attempt cap."},
	{ID: goIdentity.MetricMFARateLimited, Name: "goidentity_mfa_rate_limited_total", Help: "Rate-limited MFA confirmations."},
	{ID: goIdentity.MetricRecoveryCodeUsed, Name: "goidentity_recovery_code_used_total", Help: "Successful recovery-code authentications."},
	{ID: goIdentity.MetricRecoveryCodeFailed, Name: "goidentity_recovery_code_failed_total", Help: "Failed recovery-code authentications."},
	{ID: goIdentity.MetricRecoveryCodesRegenerated, Name: "goidentity_recovery_codes_regenerated_total", Help: "Recovery-code regeneration operations."},
	{ID: goIdentity.MetricRegisterSuccess, Name: "goidentity_register_success_total", Help: "Successful registrations."},
	{ID: goIdentity.MetricRegisterDuplicate, Name: "goidentity_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goIdentity.MetricRegisterRateLimited, Name: "goidentity_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: goIdentity.MetricChallengeIssued, Name: "goidentity_challenge_issued_total", Help: "Issued challenge tokens."},
	{ID: goIdentity.MetricChallengeRateLimited, Name: "goidentity_challenge_rate_limited_total", Help: "Rate-limited challenge issuance attempts."},
	{ID: goIdentity.MetricActivationSuccess, Name: "goidentity_activation_success_total", Help: "Successful account activations."},
	{ID: goIdentity.MetricActivationFailure, Name: "goidentity_activation_failure_total", Help: "Failed account activations."},
	{ID: goIdentity.MetricChallengeReplay, Name: "goidentity_challenge_replay_total", Help: "Challenge redemptions whose liveness entry was already gone."},
	{ID: goIdentity.MetricPasswordResetRequest, Name: "goidentity_password_reset_request_total", Help: "Password reset requests."},
	{ID: goIdentity.MetricPasswordResetSuccess, Name: "goidentity_password_reset_success_total", Help: "Completed password resets."},
	{ID: goIdentity.MetricPasswordResetFailure, Name: "goidentity_password_reset_failure_total", Help: "Failed password reset confirmations."},
	{ID: goIdentity.MetricResetRateLimited, Name: "goidentity_password_reset_rate_limited_total", Help: "Rate-limited password reset requests."},
	{ID: goIdentity.MetricPasswordChangeSuccess, Name: "goidentity_password_change_success_total", Help: "Successful password changes."},
	{ID: goIdentity.MetricPasswordChangeInvalidOld, Name: "goidentity_password_change_invalid_old_total", Help: "Password change attempts with a wrong current password."},
	{ID: goIdentity.MetricBanApplied, Name: "goidentity_ban_applied_total", Help: "Applied bans."},
	{ID: goIdentity.MetricBanLifted, Name: "goidentity_ban_lifted_total", Help: "Lifted bans."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Single-session logout operations."},
	{ID: goIdentity.MetricLogoutAll, Name: "goidentity_logout_all_total", Help: "Logout-all operations."},
	{ID: goIdentity.MetricSessionVerified, Name: "goidentity_session_verified_total", Help: "Tokens that verified end to end."},
	{ID: goIdentity.MetricSessionRejected, Name: "goidentity_session_rejected_total", Help: "Tokens rejected during verification."},
	{ID: goIdentity.MetricTOTPEnabled, Name: "goidentity_totp_enabled_total", Help: "Completed TOTP enrollments."},
	{ID: goIdentity.MetricTOTPDisabled, Name: "goidentity_totp_disabled_total", Help: "TOTP disable operations."},
}

// HistogramDefs lists the engine's latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricVerifyLatency, Name: "goidentity_verify_latency_seconds", Help: "VerifySession latency histogram."},
}

// HistogramBounds are the upper bounds rendered into `le` labels, matching
// the engine's millisecond buckets.
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

// HistogramBoundSuffix are bound spellings safe for instrument names.
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

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the running totals the
// Prometheus histogram format requires.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
