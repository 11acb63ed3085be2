package goIdentity

import (
	"errors"

	"github.com/MrEthical07/goIdentity/challenge"
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/mail"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A builder is single-use.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	deliverer mail.Deliverer
	auditSink AuditSink
	built     bool
}

// New returns a builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration. The builder keeps a deep
// copy; later mutation of cfg has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDeliverer sets the outbound mail boundary. Defaults to a no-op.
func (b *Builder) WithDeliverer(d mail.Deliverer) *Builder {
	b.deliverer = d
	return b
}

// WithAuditSink sets the audit event consumer. Defaults to a no-op when
// audit is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every component. The
// returned engine is safe for concurrent use; the builder must not be
// reused.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.Issuer,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}

	codec, err := challenge.NewCodec(cfg.Challenge.Key)
	if err != nil {
		return nil, err
	}

	deliverer := b.deliverer
	if deliverer == nil {
		deliverer = mail.NoOpDeliverer{}
	}

	limiter := rate.New(b.redis)

	engine := &Engine{
		config:     cfg,
		users:      stores.NewUserStore(b.redis),
		challenges: stores.NewChallengeStore(b.redis),
		mfaTickets: stores.NewMFATicketStore(b.redis),
		sessions:   session.New(b.redis),
		hasher:     hasher,
		tokens:     tokens,
		codec:      codec,
		totp:       newTOTPVerifier(cfg.TOTP, cfg.Issuer),
		deliverer:  deliverer,
		composer:   mail.Composer{ServiceName: cfg.Mail.ServiceName},
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
		loginLimiter:     newFlowLimiter(limiter, "login", cfg.RateLimit.Login, ErrLoginRateLimited),
		registerLimiter:  newFlowLimiter(limiter, "register", cfg.RateLimit.Register, ErrRegisterRateLimited),
		challengeLimiter: newFlowLimiter(limiter, "challenge", cfg.RateLimit.Challenge, ErrChallengeRateLimited),
		resetLimiter:     newFlowLimiter(limiter, "reset", cfg.RateLimit.Reset, ErrResetRateLimited),
		mfaLimiter:       newFlowLimiter(limiter, "mfa", cfg.RateLimit.MFA, ErrMFARateLimited),
		ready:            true,
	}

	b.built = true
	return engine, nil
}
