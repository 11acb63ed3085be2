package goIdentity

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goIdentity/internal"
)

// RegenerateRecoveryCodes replaces the user's recovery code set and
// returns the new plaintext codes — the only time they are visible. A
// fresh TOTP code is required, and every previously issued recovery code
// stops working the moment the replacement lands.
func (e *Engine) RegenerateRecoveryCodes(ctx context.Context, username, totpCode string) ([]string, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if e.config.TOTP.RecoveryCodeCount == 0 {
		return nil, ErrRecoveryNotSupported
	}

	username = normalizeUsername(username)
	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		return nil, translateUserErr(err)
	}
	if !creds.TOTPEnabled {
		return nil, ErrRecoveryNotSupported
	}

	counter, _, err := e.verifyTOTPCode(creds, totpCode)
	if err != nil {
		e.emitAudit(ctx, auditEventRecoveryCodesGenerated, false, username, "", "", err, nil)
		return nil, err
	}
	if counter <= creds.TOTPCounter {
		return nil, ErrTOTPInvalid
	}
	if err := e.users.SetTOTPCounter(ctx, username, counter); err != nil {
		return nil, translateUserErr(err)
	}

	codes := make([]string, 0, e.config.TOTP.RecoveryCodeCount)
	hashes := make([][32]byte, 0, e.config.TOTP.RecoveryCodeCount)
	for i := 0; i < e.config.TOTP.RecoveryCodeCount; i++ {
		code, err := internal.NewRecoveryCode(e.config.TOTP.RecoveryCodeGroupLen)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		codes = append(codes, code)
		hashes = append(hashes, internal.HashRecoveryCode(code))
	}

	if err := e.users.ReplaceRecoveryCodes(ctx, username, hashes); err != nil {
		return nil, translateUserErr(err)
	}

	e.metricInc(MetricRecoveryCodesRegenerated)
	e.emitAudit(ctx, auditEventRecoveryCodesGenerated, true, username, "", "", nil, nil)
	return codes, nil
}

// RecoveryCodeCount reports how many unused recovery codes remain.
func (e *Engine) RecoveryCodeCount(ctx context.Context, username string) (int64, error) {
	if err := e.checkReady(); err != nil {
		return 0, err
	}

	count, err := e.users.RecoveryCodeCount(ctx, normalizeUsername(username))
	if err != nil {
		return 0, translateUserErr(err)
	}
	return count, nil
}
