package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report is the effective security posture of a built engine, derived from
// configuration rather than stored anywhere.
type Report struct {
	ProductionMode       bool
	SigningAlgorithm     string
	AccessTTL            time.Duration
	ChallengeTTL         time.Duration
	Argon2               PasswordReport
	ActivationRequired   bool
	TOTPSupported        bool
	RecoveryCodesEnabled bool
	LoginLockoutActive   bool
	RateLimitingActive   bool
	PasswordResetActive  bool
	EnumerationSafeReset bool
	RevocationWatermarks bool
	AuditTrailActive     bool
}

type ReportInput struct {
	ProductionMode          bool
	SigningAlgorithm        string
	AccessTTL               time.Duration
	ChallengeTTL            time.Duration
	Password                PasswordReport
	ActivationRequired      bool
	TOTPSupported           bool
	RecoveryCodeCount       int
	MaxLoginFailures        int
	LockDuration            time.Duration
	LoginWindowMax          int
	LoginWindow             time.Duration
	PasswordResetEnabled    bool
	UniformResetResponses   bool
	SubjectWatermarkEnabled bool
	AuditEnabled            bool
}

func BuildReport(input ReportInput) Report {
	lockout := input.MaxLoginFailures > 0 && input.LockDuration > 0
	rateLimiting := input.LoginWindowMax > 0 && input.LoginWindow > 0

	return Report{
		ProductionMode:       input.ProductionMode,
		SigningAlgorithm:     input.SigningAlgorithm,
		AccessTTL:            input.AccessTTL,
		ChallengeTTL:         input.ChallengeTTL,
		Argon2:               input.Password,
		ActivationRequired:   input.ActivationRequired,
		TOTPSupported:        input.TOTPSupported,
		RecoveryCodesEnabled: input.TOTPSupported && input.RecoveryCodeCount > 0,
		LoginLockoutActive:   lockout,
		RateLimitingActive:   rateLimiting,
		PasswordResetActive:  input.PasswordResetEnabled,
		EnumerationSafeReset: input.PasswordResetEnabled && input.UniformResetResponses,
		RevocationWatermarks: input.SubjectWatermarkEnabled,
		AuditTrailActive:     input.AuditEnabled,
	}
}
