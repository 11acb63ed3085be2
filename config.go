package goIdentity

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
)

// RateWindow is one sliding-window rate limit: at most Max attempts per
// Window per subject. A zero Max disables the limit.
type RateWindow struct {
	Window time.Duration
	Max    int
}

// JWTConfig configures session token issuance and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod jwt.SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// SessionConfig configures revocation bookkeeping.
type SessionConfig struct {
	// RevocationLeeway pads the subject watermark TTL beyond AccessTTL so
	// clock drift between instances cannot resurrect a revoked session.
	RevocationLeeway time.Duration
}

// ChallengeConfig configures encrypted single-use lifecycle tokens.
type ChallengeConfig struct {
	// Key is the AES-256 key sealing challenge tokens. Must be 32 bytes
	// and shared by every instance.
	Key           []byte
	ActivationTTL time.Duration
	ResetTTL      time.Duration
}

// PasswordConfig configures argon2id hashing and password policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinLength is enforced in bytes, on the raw string.
	MinLength int
	// UpgradeOnVerify re-hashes at current costs after a successful login
	// when the stored hash used weaker parameters.
	UpgradeOnVerify bool
}

// RegistrationConfig controls the signup flow.
type RegistrationConfig struct {
	Enabled bool
	// RequireActivation gates sessions behind the email challenge. When
	// false, users are created active and register returns a session.
	RequireActivation bool
}

// LoginConfig controls the soft lockout applied on failed password checks.
type LoginConfig struct {
	MaxFailures  int
	LockDuration time.Duration
}

// PasswordResetConfig controls the forgotten-password flow.
type PasswordResetConfig struct {
	Enabled bool
	// UniformResponses makes reset requests for unknown users
	// indistinguishable from real ones, trading a precise NotFound for
	// enumeration resistance.
	UniformResponses bool
	// RevokeSessions kills every live session of the user after a
	// completed reset.
	RevokeSessions bool
}

// TOTPConfig configures time-based one-time codes and recovery codes.
type TOTPConfig struct {
	Digits    int
	Period    time.Duration
	Skew      int
	Algorithm string
	// TicketTTL bounds how long a pending MFA login stays confirmable.
	TicketTTL   time.Duration
	MaxAttempts int
	// RecoveryCodeCount is how many single-use recovery codes a
	// regeneration issues. Zero disables recovery codes.
	RecoveryCodeCount    int
	RecoveryCodeGroupLen int
}

// RateLimitConfig carries one window per flow. Subjects differ per flow:
// login and reset limit by username, registration and challenge issuance
// by client IP when present, MFA by ticket.
type RateLimitConfig struct {
	Login     RateWindow
	Register  RateWindow
	Challenge RateWindow
	Reset     RateWindow
	MFA       RateWindow
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking flows when the buffer
	// is saturated.
	DropIfFull bool
}

// MetricsConfig controls in-process counters and histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// MailConfig configures message composition; delivery is the caller's.
type MailConfig struct {
	ServiceName string
}

// Config is the complete engine configuration. Treat it as immutable after
// Build: the builder stores a deep copy and never reads the original again.
type Config struct {
	// ProductionMode tightens validation: weak keys, disabled activation
	// challenges and missing rate limits become build errors instead of
	// warnings.
	ProductionMode bool
	// DefaultAudience is used wherever a request does not name one.
	DefaultAudience string
	Issuer          string

	JWT           JWTConfig
	Session       SessionConfig
	Challenge     ChallengeConfig
	Password      PasswordConfig
	Registration  RegistrationConfig
	Login         LoginConfig
	PasswordReset PasswordResetConfig
	TOTP          TOTPConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Mail          MailConfig
}

// DefaultConfig returns a development-grade configuration. Secrets (JWT
// private key, challenge key) are intentionally absent and must be set.
func DefaultConfig() Config {
	return Config{
		DefaultAudience: "app",
		Issuer:          "goidentity",
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: jwt.MethodHS256,
			Leeway:        30 * time.Second,
			MaxFutureIAT:  10 * time.Minute,
		},
		Session: SessionConfig{
			RevocationLeeway: 2 * time.Minute,
		},
		Challenge: ChallengeConfig{
			ActivationTTL: 24 * time.Hour,
			ResetTTL:      30 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:          64 * 1024,
			Time:            3,
			Parallelism:     2,
			SaltLength:      16,
			KeyLength:       32,
			MinLength:       10,
			UpgradeOnVerify: true,
		},
		Registration: RegistrationConfig{
			Enabled:           true,
			RequireActivation: true,
		},
		Login: LoginConfig{
			MaxFailures:  5,
			LockDuration: 15 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:          true,
			UniformResponses: true,
			RevokeSessions:   true,
		},
		TOTP: TOTPConfig{
			Digits:               6,
			Period:               30 * time.Second,
			Skew:                 1,
			Algorithm:            "sha1",
			TicketTTL:            5 * time.Minute,
			MaxAttempts:          5,
			RecoveryCodeCount:    8,
			RecoveryCodeGroupLen: 5,
		},
		RateLimit: RateLimitConfig{
			Login:     RateWindow{Window: 15 * time.Minute, Max: 10},
			Register:  RateWindow{Window: time.Hour, Max: 5},
			Challenge: RateWindow{Window: time.Hour, Max: 5},
			Reset:     RateWindow{Window: time.Hour, Max: 5},
			MFA:       RateWindow{Window: 5 * time.Minute, Max: 10},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Mail: MailConfig{
			ServiceName: "goidentity",
		},
	}
}

// Validate checks cross-field consistency. Called by Build; exported so
// configuration loaders can fail early.
func (c *Config) Validate() error {
	if c.DefaultAudience == "" {
		return errors.New("config: DefaultAudience is required")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("config: JWT.AccessTTL must be positive")
	}
	if c.Session.RevocationLeeway < 0 {
		return errors.New("config: Session.RevocationLeeway must not be negative")
	}
	if len(c.Challenge.Key) != 32 {
		return errors.New("config: Challenge.Key must be 32 bytes")
	}
	if c.Challenge.ActivationTTL <= 0 || c.Challenge.ResetTTL <= 0 {
		return errors.New("config: challenge TTLs must be positive")
	}
	if c.Password.MinLength < 1 {
		return errors.New("config: Password.MinLength must be at least 1")
	}
	if c.Login.MaxFailures < 0 || c.Login.LockDuration < 0 {
		return errors.New("config: negative login lockout settings")
	}
	if c.Login.MaxFailures > 0 && c.Login.LockDuration == 0 {
		return errors.New("config: Login.MaxFailures set without LockDuration")
	}
	if err := validateTOTPConfig(c.TOTP); err != nil {
		return err
	}
	for name, rw := range map[string]RateWindow{
		"Login":     c.RateLimit.Login,
		"Register":  c.RateLimit.Register,
		"Challenge": c.RateLimit.Challenge,
		"Reset":     c.RateLimit.Reset,
		"MFA":       c.RateLimit.MFA,
	} {
		if rw.Max < 0 || rw.Window < 0 {
			return fmt.Errorf("config: negative RateLimit.%s settings", name)
		}
		if rw.Max > 0 && rw.Window == 0 {
			return fmt.Errorf("config: RateLimit.%s.Max set without Window", name)
		}
	}

	if c.ProductionMode {
		if c.JWT.SigningMethod == jwt.MethodHS256 && len(c.JWT.PrivateKey) < 32 {
			return errors.New("config: production mode requires an HS256 key of at least 32 bytes")
		}
		if !c.Registration.RequireActivation && c.Registration.Enabled {
			return errors.New("config: production mode requires activation challenges")
		}
		if c.RateLimit.Login.Max == 0 {
			return errors.New("config: production mode requires a login rate limit")
		}
		if c.Password.MinLength < 10 {
			return errors.New("config: production mode requires Password.MinLength >= 10")
		}
		if c.PasswordReset.Enabled && !c.PasswordReset.UniformResponses {
			return errors.New("config: production mode requires uniform password reset responses")
		}
	}

	return nil
}

func validateTOTPConfig(cfg TOTPConfig) error {
	if cfg.Digits < 6 || cfg.Digits > 10 {
		return errors.New("config: TOTP.Digits must be between 6 and 10")
	}
	if cfg.Period < time.Second {
		return errors.New("config: TOTP.Period must be at least one second")
	}
	if cfg.Skew < 0 || cfg.Skew > 4 {
		return errors.New("config: TOTP.Skew must be between 0 and 4")
	}
	switch cfg.Algorithm {
	case "sha1", "sha256", "sha512":
	default:
		return errors.New("config: TOTP.Algorithm must be sha1, sha256 or sha512")
	}
	if cfg.TicketTTL <= 0 {
		return errors.New("config: TOTP.TicketTTL must be positive")
	}
	if cfg.MaxAttempts < 1 {
		return errors.New("config: TOTP.MaxAttempts must be at least 1")
	}
	if cfg.RecoveryCodeCount < 0 || cfg.RecoveryCodeCount > 64 {
		return errors.New("config: TOTP.RecoveryCodeCount must be between 0 and 64")
	}
	if cfg.RecoveryCodeCount > 0 && (cfg.RecoveryCodeGroupLen < 4 || cfg.RecoveryCodeGroupLen > 16) {
		return errors.New("config: TOTP.RecoveryCodeGroupLen must be between 4 and 16")
	}
	return nil
}

// cloneConfig deep-copies every reference-typed field so post-build
// mutation of the caller's Config cannot reach the engine.
func cloneConfig(c Config) Config {
	out := c

	out.JWT.PrivateKey = append([]byte(nil), c.JWT.PrivateKey...)
	out.JWT.PublicKey = append([]byte(nil), c.JWT.PublicKey...)
	out.Challenge.Key = append([]byte(nil), c.Challenge.Key...)

	if c.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(c.JWT.VerifyKeys))
		for kid, key := range c.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = append([]byte(nil), key...)
		}
	}

	return out
}
