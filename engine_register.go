package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/challenge"
	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/mail"
)

// Register creates a user and, when activation is required, queues an
// activation challenge instead of issuing a session. The metadata seed is
// written under the given audience in the same atomic step as the record,
// so a freshly registered user is never observable without it.
func (e *Engine) Register(
	ctx context.Context,
	username, plaintext, audience string,
	metadata map[string]string,
) (*RegistrationResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if !e.config.Registration.Enabled {
		return nil, fmt.Errorf("%w: registration disabled", ErrValidation)
	}

	username = normalizeUsername(username)
	if !validUsername(username) {
		return nil, fmt.Errorf("%w: username", ErrValidation)
	}
	if !e.validPassword(plaintext) {
		return nil, ErrPasswordPolicy
	}
	audience = e.audienceOrDefault(audience)

	// Registration is limited by client IP when the caller supplies one;
	// otherwise the username keys the window so anonymous floods still hit
	// a ceiling.
	subject := clientIPFromContext(ctx)
	if subject == "" {
		subject = username
	}
	if err := e.registerLimiter.Enforce(ctx, subject); err != nil {
		if errors.Is(err, ErrRegisterRateLimited) {
			e.emitRateLimit(ctx, "register", subject, MetricRegisterRateLimited)
		}
		return nil, err
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	plaintext = ""

	active := !e.config.Registration.RequireActivation
	if err := e.users.Create(ctx, username, hash, active, audience, metadata); err != nil {
		err = translateUserErr(err)
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, username, audience, "", err, nil)
		}
		return nil, err
	}

	view := &UserView{
		Username: username,
		Active:   active,
		Metadata: map[string]map[string]string{audience: cloneMetadata(metadata)},
	}
	result := &RegistrationResult{User: view}

	if e.config.Registration.RequireActivation {
		if err := e.issueChallenge(ctx, challenge.ActionActivate, username, audience); err != nil {
			// The record exists; the caller can retry via SendActivationChallenge.
			return nil, err
		}
		result.RequiresActivation = true
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, username, audience, "", nil, func() map[string]string {
			return map[string]string{"activation": "pending"}
		})
		return result, nil
	}

	token, jti, expiresAt, err := e.tokens.Issue(username, audience, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	result.Token = token
	result.ExpiresAt = expiresAt
	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, username, audience, jti, nil, nil)
	return result, nil
}

// issueChallenge seals a single-use token, registers its liveness entry and
// hands the composed mail to the deliverer. Shared by activation and
// password reset issuance.
func (e *Engine) issueChallenge(ctx context.Context, action challenge.Action, username, audience string) error {
	nonce, err := internal.NewNonce()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	payload := challenge.Payload{
		Action:     action,
		IssuedAt:   time.Now().Unix(),
		Identifier: username,
		Audience:   audience,
		Nonce:      nonce,
	}
	token, err := e.codec.Seal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ttl := e.config.Challenge.ActivationTTL
	if action == challenge.ActionPasswordReset {
		ttl = e.config.Challenge.ResetTTL
	}
	if err := e.challenges.Put(ctx, nonce.String(), payload.Fingerprint(), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var msg mail.Message
	switch action {
	case challenge.ActionPasswordReset:
		msg, err = e.composer.PasswordReset(username, token, ttl)
	default:
		msg, err = e.composer.Activation(username, token, ttl)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	if err := e.deliverer.Deliver(ctx, username, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}

	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventChallengeIssued, true, username, audience, nonce.String(), nil, func() map[string]string {
		return map[string]string{"action": challengeActionName(action)}
	})
	return nil
}

func challengeActionName(action challenge.Action) string {
	if action == challenge.ActionPasswordReset {
		return "password_reset"
	}
	return "activate"
}

func cloneMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
