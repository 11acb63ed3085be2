package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/challenge"
	"github.com/MrEthical07/goIdentity/internal/stores"
)

// RequestPasswordReset queues a reset challenge. With UniformResponses on,
// requests for unknown or banned accounts take the same path minus the
// store write and mail hand-off and report Queued all the same, so the
// endpoint cannot be used to probe which usernames exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, username string) (*ChallengeResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if !e.config.PasswordReset.Enabled {
		return nil, fmt.Errorf("%w: password reset disabled", ErrValidation)
	}

	username = normalizeUsername(username)
	if !validUsername(username) {
		return nil, fmt.Errorf("%w: username", ErrValidation)
	}

	if err := e.resetLimiter.Enforce(ctx, username); err != nil {
		if errors.Is(err, ErrResetRateLimited) {
			e.emitRateLimit(ctx, "reset", username, MetricResetRateLimited)
		}
		return nil, err
	}

	e.metricInc(MetricPasswordResetRequest)

	creds, err := e.users.GetCredentials(ctx, username)
	suppress := false
	switch {
	case err == nil && creds.Banned:
		suppress = true
	case errors.Is(err, stores.ErrUserNotFound):
		suppress = true
	case err != nil:
		return nil, translateUserErr(err)
	}

	if suppress {
		if !e.config.PasswordReset.UniformResponses {
			if creds != nil && creds.Banned {
				return nil, ErrAccountBanned
			}
			return nil, ErrUserNotFound
		}
		// Burn the same sealing work a real request does so timing does
		// not separate the two paths, then drop the token.
		e.suppressedChallenge(ctx, username)
		return &ChallengeResult{Queued: true}, nil
	}

	if err := e.issueChallenge(ctx, challenge.ActionPasswordReset, username, e.config.DefaultAudience); err != nil {
		return nil, err
	}
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, username, "", "", nil, nil)
	return &ChallengeResult{Queued: true}, nil
}

func (e *Engine) suppressedChallenge(ctx context.Context, username string) {
	payload := challenge.Payload{
		Action:     challenge.ActionPasswordReset,
		Identifier: username,
	}
	_, _ = e.codec.Seal(payload)
	e.emitAudit(ctx, auditEventChallengeSuppressed, true, username, "", "", nil, nil)
}

// ConfirmPasswordReset redeems a reset token and installs the new
// password. The challenge is consumed before anything changes, so a token
// can never reset twice; a completed reset clears the lockout counter and,
// when configured, revokes every live session.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if !e.config.PasswordReset.Enabled {
		return fmt.Errorf("%w: password reset disabled", ErrValidation)
	}
	if !e.validPassword(newPassword) {
		return ErrPasswordPolicy
	}

	payload, err := e.codec.Open(token)
	if err != nil {
		e.metricInc(MetricPasswordResetFailure)
		return ErrChallengeInvalid
	}
	if payload.Action != challenge.ActionPasswordReset {
		e.metricInc(MetricPasswordResetFailure)
		return ErrChallengeInvalid
	}

	if err := e.consumeChallenge(ctx, payload); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, payload.Identifier, "", payload.Nonce.String(), err, nil)
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	newPassword = ""

	if err := e.users.SetPasswordHash(ctx, payload.Identifier, hash); err != nil {
		err = translateUserErr(err)
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, payload.Identifier, "", "", err, nil)
		return err
	}
	_ = e.users.ResetLoginFailures(ctx, payload.Identifier)

	if e.config.PasswordReset.RevokeSessions {
		ttl := e.config.JWT.AccessTTL + e.config.Session.RevocationLeeway
		if err := e.sessions.RevokeAll(ctx, payload.Identifier, ttl); err != nil {
			return translateSessionErr(err)
		}
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, payload.Identifier, "", "", nil, nil)
	return nil
}

// ChangePassword is the authenticated path: the caller proves the current
// password in the same call. A successful change revokes every other live
// session of the user.
func (e *Engine) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	username = normalizeUsername(username)
	if oldPassword == "" {
		return ErrInvalidCredentials
	}
	if !e.validPassword(newPassword) {
		return ErrPasswordPolicy
	}

	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		return translateUserErr(err)
	}
	if creds.Banned {
		return ErrAccountBanned
	}

	ok, err := e.hasher.Verify(oldPassword, creds.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "old_password_mismatch"}
		})
		return ErrInvalidCredentials
	}

	if same, err := e.hasher.Verify(newPassword, creds.PasswordHash); err == nil && same {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "password_reuse"}
		})
		return ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	oldPassword = ""
	newPassword = ""

	if err := e.users.SetPasswordHash(ctx, username, hash); err != nil {
		return translateUserErr(err)
	}
	_ = e.users.ResetLoginFailures(ctx, username)

	ttl := e.config.JWT.AccessTTL + e.config.Session.RevocationLeeway
	if err := e.sessions.RevokeAll(ctx, username, ttl); err != nil {
		return translateSessionErr(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, username, "", "", nil, nil)
	return nil
}
