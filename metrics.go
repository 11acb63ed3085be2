package goIdentity

import internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"

// Metric IDs re-exported for callers reading snapshots or single values.
const (
	MetricLoginSuccess             = internalmetrics.MetricLoginSuccess
	MetricLoginFailure             = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited         = internalmetrics.MetricLoginRateLimited
	MetricAccountLocked            = internalmetrics.MetricAccountLocked
	MetricMFARequired              = internalmetrics.MetricMFARequired
	MetricMFASuccess               = internalmetrics.MetricMFASuccess
	MetricMFAFailure               = internalmetrics.MetricMFAFailure
	MetricMFAAttemptsExceeded      = internalmetrics.MetricMFAAttemptsExceeded
	MetricMFARateLimited           = internalmetrics.MetricMFARateLimited
	MetricRecoveryCodeUsed         = internalmetrics.MetricRecoveryCodeUsed
	MetricRecoveryCodeFailed       = internalmetrics.MetricRecoveryCodeFailed
	MetricRecoveryCodesRegenerated = internalmetrics.MetricRecoveryCodesRegenerated
	MetricRegisterSuccess          = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate        = internalmetrics.MetricRegisterDuplicate
	MetricRegisterRateLimited      = internalmetrics.MetricRegisterRateLimited
	MetricChallengeIssued          = internalmetrics.MetricChallengeIssued
	MetricChallengeRateLimited     = internalmetrics.MetricChallengeRateLimited
	MetricActivationSuccess        = internalmetrics.MetricActivationSuccess
	MetricActivationFailure        = internalmetrics.MetricActivationFailure
	MetricChallengeReplay          = internalmetrics.MetricChallengeReplay
	MetricPasswordResetRequest     = internalmetrics.MetricPasswordResetRequest
	MetricPasswordResetSuccess     = internalmetrics.MetricPasswordResetSuccess
	MetricPasswordResetFailure     = internalmetrics.MetricPasswordResetFailure
	MetricResetRateLimited         = internalmetrics.MetricResetRateLimited
	MetricPasswordChangeSuccess    = internalmetrics.MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld = internalmetrics.MetricPasswordChangeInvalidOld
	MetricBanApplied               = internalmetrics.MetricBanApplied
	MetricBanLifted                = internalmetrics.MetricBanLifted
	MetricLogout                   = internalmetrics.MetricLogout
	MetricLogoutAll                = internalmetrics.MetricLogoutAll
	MetricSessionVerified          = internalmetrics.MetricSessionVerified
	MetricSessionRejected          = internalmetrics.MetricSessionRejected
	MetricTOTPEnabled              = internalmetrics.MetricTOTPEnabled
	MetricTOTPDisabled             = internalmetrics.MetricTOTPDisabled
	MetricVerifyLatency            = internalmetrics.MetricVerifyLatency
)

// MetricsSnapshot returns a point-in-time copy of the engine's counters
// and histograms, suitable for exporters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || !e.ready {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.SnapshotAll()
}

// MetricValue reads one counter.
func (e *Engine) MetricValue(id MetricID) uint64 {
	if e == nil || !e.ready {
		return 0
	}
	return e.metrics.Value(id)
}
