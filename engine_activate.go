package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/challenge"
	"github.com/MrEthical07/goIdentity/internal/stores"
)

// Activate redeems an activation token and issues the first session for
// the account. The token's liveness entry is consumed atomically before
// the account flips active, so a replayed token fails with
// [ErrChallengeExpired] even when both redemptions race.
func (e *Engine) Activate(ctx context.Context, token string) (*LoginResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	payload, err := e.codec.Open(token)
	if err != nil {
		e.metricInc(MetricActivationFailure)
		e.emitAudit(ctx, auditEventActivationFailure, false, "", "", "", ErrChallengeInvalid, nil)
		return nil, ErrChallengeInvalid
	}
	if payload.Action != challenge.ActionActivate {
		e.metricInc(MetricActivationFailure)
		e.emitAudit(ctx, auditEventActivationFailure, false, payload.Identifier, payload.Audience, "", ErrChallengeInvalid, func() map[string]string {
			return map[string]string{"reason": "wrong_action"}
		})
		return nil, ErrChallengeInvalid
	}

	if err := e.consumeChallenge(ctx, payload); err != nil {
		e.metricInc(MetricActivationFailure)
		e.emitAudit(ctx, auditEventActivationFailure, false, payload.Identifier, payload.Audience, payload.Nonce.String(), err, nil)
		return nil, err
	}

	if err := e.users.Activate(ctx, payload.Identifier); err != nil {
		err = translateUserErr(err)
		e.metricInc(MetricActivationFailure)
		e.emitAudit(ctx, auditEventActivationFailure, false, payload.Identifier, payload.Audience, "", err, nil)
		return nil, err
	}

	sessionToken, jti, expiresAt, err := e.tokens.Issue(payload.Identifier, payload.Audience, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricActivationSuccess)
	e.emitAudit(ctx, auditEventActivationSuccess, true, payload.Identifier, payload.Audience, jti, nil, nil)
	return &LoginResult{Token: sessionToken, ExpiresAt: expiresAt}, nil
}

// ActivateUser flips an account active without a token. This is the
// privileged service-action path; it never issues a session.
func (e *Engine) ActivateUser(ctx context.Context, username string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	username = normalizeUsername(username)
	if err := e.users.Activate(ctx, username); err != nil {
		err = translateUserErr(err)
		e.emitAudit(ctx, auditEventPrivilegedActivation, false, username, "", "", err, nil)
		return err
	}

	e.metricInc(MetricActivationSuccess)
	e.emitAudit(ctx, auditEventPrivilegedActivation, true, username, "", "", nil, nil)
	return nil
}

// consumeChallenge burns the liveness entry for a decoded payload. A
// missing entry means the token expired or was already redeemed; the two
// are indistinguishable on purpose.
func (e *Engine) consumeChallenge(ctx context.Context, payload challenge.Payload) error {
	err := e.challenges.Consume(ctx, payload.Nonce.String(), payload.Fingerprint())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrLivenessMissing):
		e.metricInc(MetricChallengeReplay)
		return ErrChallengeExpired
	case errors.Is(err, stores.ErrLivenessMismatch):
		return ErrChallengeMismatch
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
