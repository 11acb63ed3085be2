package goIdentity

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/challenge"
	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/mail"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/session"
)

// Engine is the credential and session lifecycle coordinator. Build one
// through [Builder.Build]; a built engine is immutable and safe for
// concurrent use.
type Engine struct {
	config     Config
	users      *stores.UserStore
	challenges *stores.ChallengeStore
	mfaTickets *stores.MFATicketStore
	sessions   *session.Store
	hasher     *password.Hasher
	tokens     *jwt.Manager
	codec      *challenge.Codec
	totp       *totpVerifier
	deliverer  mail.Deliverer
	composer   mail.Composer
	audit      *internalaudit.Dispatcher
	metrics    *internalmetrics.Metrics

	loginLimiter     *flowLimiter
	registerLimiter  *flowLimiter
	challengeLimiter *flowLimiter
	resetLimiter     *flowLimiter
	mfaLimiter       *flowLimiter

	ready bool
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped counts audit events shed under back-pressure since Build.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

const (
	usernameMinLength = 3
	usernameMaxLength = 64
)

// normalizeUsername lowercases ASCII letters so lookups are
// case-insensitive. Validation rejects anything outside the username
// alphabet before this matters for other runes.
func normalizeUsername(username string) string {
	b := []byte(username)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return username
	}
	return string(b)
}

func validUsername(username string) bool {
	if len(username) < usernameMinLength || len(username) > usernameMaxLength {
		return false
	}
	for i := 0; i < len(username); i++ {
		c := username[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '_' || c == '@' || c == '+':
		default:
			return false
		}
	}
	return true
}

func (e *Engine) validPassword(plaintext string) bool {
	if len(plaintext) < e.config.Password.MinLength {
		return false
	}
	// Argon2 input is unbounded but a cap stops accidental megabyte
	// payloads from burning hash time.
	return len(plaintext) <= 1024
}

func (e *Engine) audienceOrDefault(audience string) string {
	if audience == "" {
		return e.config.DefaultAudience
	}
	return audience
}

// translateUserErr maps user store sentinels onto the public taxonomy.
// Transient failures never surface as NotFound.
func translateUserErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, stores.ErrUserExists):
		return ErrUserExists
	case errors.Is(err, stores.ErrUserAlreadyActive):
		return ErrAlreadyActive
	case errors.Is(err, stores.ErrBanAlreadyInState):
		return ErrBanAlreadySet
	case errors.Is(err, stores.ErrRecoveryCodeNotFound):
		return ErrRecoveryCodeInvalid
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func translateSessionErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// checkReady guards every public operation against a hand-rolled engine.
func (e *Engine) checkReady() error {
	if e == nil || !e.ready {
		return ErrEngineNotReady
	}
	return nil
}
