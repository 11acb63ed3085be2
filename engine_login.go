package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/stores"
)

// Login checks a password and either issues a session or, for accounts
// with TOTP enabled, returns an MFA ticket to be confirmed through
// [Engine.ConfirmLoginMFA]. Checks run in a fixed order: existence, ban,
// lock, activation, then the password itself; an unknown username surfaces
// as [ErrInvalidCredentials] so login does not confirm registrations.
func (e *Engine) Login(ctx context.Context, username, plaintext, audience string) (*LoginResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	username = normalizeUsername(username)
	audience = e.audienceOrDefault(audience)

	if err := e.loginLimiter.Enforce(ctx, username); err != nil {
		if errors.Is(err, ErrLoginRateLimited) {
			e.emitRateLimit(ctx, "login", username, MetricLoginRateLimited)
		}
		return nil, err
	}

	if plaintext == "" || !validUsername(username) {
		return nil, e.loginFailure(ctx, username, audience, ErrInvalidCredentials, "malformed_input")
	}

	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			return nil, e.loginFailure(ctx, username, audience, ErrInvalidCredentials, "user_not_found")
		}
		return nil, translateUserErr(err)
	}

	if creds.Banned {
		return nil, e.loginFailure(ctx, username, audience, ErrAccountBanned, "banned")
	}
	if creds.LockedUntil > time.Now().Unix() {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, username, audience, "", ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}
	if !creds.Active {
		return nil, e.loginFailure(ctx, username, audience, ErrAccountInactive, "inactive")
	}

	ok, err := e.hasher.Verify(plaintext, creds.PasswordHash)
	if err != nil || !ok {
		count, locked, recErr := e.users.RecordLoginFailure(
			ctx, username, int64(e.config.Login.MaxFailures), e.config.Login.LockDuration,
		)
		if recErr != nil && !errors.Is(recErr, stores.ErrUserNotFound) {
			return nil, translateUserErr(recErr)
		}
		if locked {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, auditEventLoginLocked, false, username, audience, "", ErrAccountLocked, func() map[string]string {
				return map[string]string{"failures": fmt.Sprintf("%d", count)}
			})
			return nil, ErrAccountLocked
		}
		return nil, e.loginFailure(ctx, username, audience, ErrInvalidCredentials, "password_mismatch")
	}

	// Counter reset and limiter reset are best-effort: a transient store
	// error must not turn a correct password into a failed login.
	_ = e.users.ResetLoginFailures(ctx, username)
	_ = e.loginLimiter.Reset(ctx, username)

	if e.config.Password.UpgradeOnVerify {
		if needs, err := e.hasher.NeedsUpgrade(creds.PasswordHash); err == nil && needs {
			if upgraded, err := e.hasher.Hash(plaintext); err == nil {
				_ = e.users.SetPasswordHash(ctx, username, upgraded)
			}
		}
	}
	plaintext = ""

	if creds.TOTPEnabled {
		return e.beginMFALogin(ctx, username, audience)
	}

	return e.issueLoginSession(ctx, username, audience)
}

func (e *Engine) loginFailure(ctx context.Context, username, audience string, cause error, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, username, audience, "", cause, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return cause
}

// beginMFALogin parks the half-completed login in a short-lived ticket.
// The ticket string carries a random secret whose hash is the only thing
// stored, so a leaked store dump cannot mint confirmable tickets.
func (e *Engine) beginMFALogin(ctx context.Context, username, audience string) (*LoginResult, error) {
	id, err := internal.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	secret, err := internal.NewMFASecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ticket := &stores.MFATicket{
		Username:   username,
		Audience:   audience,
		SecretHash: internal.HashMFASecret(secret),
		ExpiresAt:  time.Now().Add(e.config.TOTP.TicketTTL).Unix(),
	}
	if err := e.mfaTickets.Save(ctx, id.String(), ticket, e.config.TOTP.TicketTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricMFARequired)
	e.emitAudit(ctx, auditEventMFARequired, true, username, audience, id.String(), nil, nil)
	return &LoginResult{
		MFARequired: true,
		MFATicket:   internal.EncodeMFATicket(id, secret),
	}, nil
}

func (e *Engine) issueLoginSession(ctx context.Context, username, audience string) (*LoginResult, error) {
	token, jti, expiresAt, err := e.tokens.Issue(username, audience, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, username, audience, jti, nil, nil)
	return &LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}
