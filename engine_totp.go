package goIdentity

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/stores"
)

// BeginTOTPEnrollment generates a fresh secret for the user and stores it
// disabled. The plaintext secret and provisioning URI are returned exactly
// once; MFA only starts gating logins after [Engine.ConfirmTOTPEnrollment]
// sees a valid code.
func (e *Engine) BeginTOTPEnrollment(ctx context.Context, username string) (*TOTPEnrollment, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	username = normalizeUsername(username)
	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		return nil, translateUserErr(err)
	}
	if creds.Banned {
		return nil, ErrAccountBanned
	}
	if creds.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	_, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.users.SetTOTPSecret(ctx, username, encoded); err != nil {
		return nil, translateUserErr(err)
	}

	e.emitAudit(ctx, auditEventTOTPEnrollmentRequested, true, username, "", "", nil, nil)
	return &TOTPEnrollment{
		Secret: encoded,
		URI:    e.totp.ProvisionURI(encoded, username),
	}, nil
}

// ConfirmTOTPEnrollment enables MFA after the first valid code, proving
// the authenticator actually holds the secret. The accepted counter seeds
// the replay floor.
func (e *Engine) ConfirmTOTPEnrollment(ctx context.Context, username, code string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	username = normalizeUsername(username)
	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		return translateUserErr(err)
	}
	if creds.TOTPEnabled {
		return ErrTOTPAlreadyEnabled
	}
	if creds.TOTPSecret == "" {
		return ErrTOTPNotConfigured
	}

	counter, _, err := e.verifyTOTPCode(creds, code)
	if err != nil {
		e.emitAudit(ctx, auditEventTOTPEnabled, false, username, "", "", err, nil)
		return err
	}

	if err := e.users.SetTOTPCounter(ctx, username, counter); err != nil {
		return translateUserErr(err)
	}
	if err := e.users.EnableTOTP(ctx, username); err != nil {
		return translateUserErr(err)
	}

	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, username, "", "", nil, nil)
	return nil
}

// DisableTOTP turns MFA off. A valid current code is required, so a stolen
// session alone cannot strip the second factor. Recovery codes are wiped
// in the same call.
func (e *Engine) DisableTOTP(ctx context.Context, username, code string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	username = normalizeUsername(username)
	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		return translateUserErr(err)
	}
	if !creds.TOTPEnabled {
		return ErrTOTPNotConfigured
	}

	counter, _, err := e.verifyTOTPCode(creds, code)
	if err != nil {
		e.emitAudit(ctx, auditEventTOTPDisabled, false, username, "", "", err, nil)
		return err
	}
	if counter <= creds.TOTPCounter {
		e.emitAudit(ctx, auditEventTOTPDisabled, false, username, "", "", ErrTOTPInvalid, nil)
		return ErrTOTPInvalid
	}

	if err := e.users.DisableTOTP(ctx, username); err != nil {
		return translateUserErr(err)
	}
	if err := e.users.ReplaceRecoveryCodes(ctx, username, nil); err != nil {
		return translateUserErr(err)
	}

	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, username, "", "", nil, nil)
	return nil
}

// verifyTOTPCode decodes the stored secret and checks one code, returning
// the matched counter and observed skew.
func (e *Engine) verifyTOTPCode(creds *stores.Credentials, code string) (int64, int, error) {
	secret, err := totpBase32.DecodeString(creds.TOTPSecret)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: stored totp secret undecodable", ErrStoreUnavailable)
	}

	ok, counter, skew, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil || !ok {
		return 0, 0, ErrTOTPInvalid
	}
	return counter, skew, nil
}
