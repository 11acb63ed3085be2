package goIdentity

import "errors"

var (
	// ErrEngineNotReady is returned by every operation on an engine that
	// was not built through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrValidation marks malformed input rejected before any store call.
	ErrValidation = errors.New("invalid request")

	// User lifecycle.
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrAlreadyActive   = errors.New("user already active")
	ErrAccountInactive = errors.New("account not activated")
	ErrAccountBanned   = errors.New("account banned")
	ErrAccountLocked   = errors.New("account temporarily locked")
	ErrBanAlreadySet   = errors.New("ban flag already in requested state")
	// ErrBanActionRequired is returned when a ban request carries no
	// explicit ban/unban discriminator.
	ErrBanActionRequired = errors.New("ban action discriminator required")

	// Credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordPolicy     = errors.New("password policy violation")

	// Challenge tokens. ErrChallengeInvalid covers every undecodable or
	// forged token; expired and mismatch refer to the liveness entry.
	ErrChallengeInvalid  = errors.New("invalid challenge token")
	ErrChallengeExpired  = errors.New("challenge expired or already used")
	ErrChallengeMismatch = errors.New("challenge does not match issued token")

	// MFA.
	ErrTOTPInvalid          = errors.New("invalid totp code")
	ErrTOTPNotConfigured    = errors.New("totp not configured")
	ErrTOTPAlreadyEnabled   = errors.New("totp already enabled")
	ErrMFARequired          = errors.New("mfa required")
	ErrMFATicketInvalid     = errors.New("mfa ticket invalid")
	ErrMFATicketExpired     = errors.New("mfa ticket expired")
	ErrMFAAttemptsExceeded  = errors.New("mfa attempts exceeded")
	ErrRecoveryCodeInvalid  = errors.New("invalid recovery code")
	ErrRecoveryNotSupported = errors.New("recovery codes require enabled totp")

	// Sessions.
	ErrSessionInvalid = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session expired")
	ErrSessionRevoked = errors.New("session revoked")

	// Rate limiting, one sentinel per flow so callers can map them to
	// distinct retry-after surfaces.
	ErrLoginRateLimited     = errors.New("login rate limited")
	ErrRegisterRateLimited  = errors.New("registration rate limited")
	ErrChallengeRateLimited = errors.New("challenge issuance rate limited")
	ErrResetRateLimited     = errors.New("password reset rate limited")
	ErrMFARateLimited       = errors.New("mfa attempts rate limited")

	// Transient infrastructure failures. Never conflated with domain
	// errors: a store timeout on an existence check surfaces as one of
	// these, not as NotFound. Eligible for caller-directed retry.
	ErrStoreUnavailable   = errors.New("identity store unavailable")
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
	ErrMailUnavailable    = errors.New("mail delivery unavailable")
)

// IsTransient reports whether the error is a transient infrastructure
// failure that a caller may retry with backoff.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrLimiterUnavailable) ||
		errors.Is(err, ErrMailUnavailable)
}

// IsRateLimited reports whether the error is any flow's rate limit.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrLoginRateLimited) ||
		errors.Is(err, ErrRegisterRateLimited) ||
		errors.Is(err, ErrChallengeRateLimited) ||
		errors.Is(err, ErrResetRateLimited) ||
		errors.Is(err, ErrMFARateLimited)
}
