package goIdentity

import "github.com/MrEthical07/goIdentity/internal/security"

// SecurityReport summarizes the engine's effective security posture for
// operators and compliance checks. It is computed from configuration on
// every call and never touches the store.
func (e *Engine) SecurityReport() (SecurityReport, error) {
	if err := e.checkReady(); err != nil {
		return SecurityReport{}, err
	}

	hasherReport := e.hasher.Report()
	return security.BuildReport(security.ReportInput{
		ProductionMode:   e.config.ProductionMode,
		SigningAlgorithm: e.tokens.Algorithm(),
		AccessTTL:        e.config.JWT.AccessTTL,
		ChallengeTTL:     e.config.Challenge.ActivationTTL,
		Password: security.PasswordReport{
			Memory:      hasherReport.Memory,
			Time:        hasherReport.Time,
			Parallelism: hasherReport.Parallelism,
			SaltLength:  hasherReport.SaltLength,
			KeyLength:   hasherReport.KeyLength,
		},
		ActivationRequired:      e.config.Registration.RequireActivation,
		TOTPSupported:           true,
		RecoveryCodeCount:       e.config.TOTP.RecoveryCodeCount,
		MaxLoginFailures:        e.config.Login.MaxFailures,
		LockDuration:            e.config.Login.LockDuration,
		LoginWindowMax:          e.config.RateLimit.Login.Max,
		LoginWindow:             e.config.RateLimit.Login.Window,
		PasswordResetEnabled:    e.config.PasswordReset.Enabled,
		UniformResetResponses:   e.config.PasswordReset.UniformResponses,
		SubjectWatermarkEnabled: true,
		AuditEnabled:            e.config.Audit.Enabled,
	}), nil
}
