package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/internal/stores"
)

// ConfirmLoginMFA completes a login parked by an MFA ticket. The code is
// either a TOTP code or a single-use recovery code; the shape of the input
// decides which path runs. Wrong codes burn one of the ticket's bounded
// attempts; exhausting them invalidates the ticket.
func (e *Engine) ConfirmLoginMFA(ctx context.Context, ticket, code string) (*LoginResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: code", ErrValidation)
	}

	id, secret, err := internal.DecodeMFATicket(ticket)
	if err != nil {
		return nil, ErrMFATicketInvalid
	}
	ticketID := id.String()

	if err := e.mfaLimiter.Enforce(ctx, ticketID); err != nil {
		if errors.Is(err, ErrMFARateLimited) {
			e.emitRateLimit(ctx, "mfa", ticketID, MetricMFARateLimited)
		}
		return nil, err
	}

	state, err := e.mfaTickets.Get(ctx, ticketID, internal.HashMFASecret(secret))
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrMFATicketExpired):
			return nil, ErrMFATicketExpired
		case errors.Is(err, stores.ErrMFATicketNotFound), errors.Is(err, stores.ErrMFATicketMismatch):
			return nil, ErrMFATicketInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	creds, err := e.users.GetCredentials(ctx, state.Username)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			_, _ = e.mfaTickets.Delete(ctx, ticketID)
			return nil, ErrMFATicketInvalid
		}
		return nil, translateUserErr(err)
	}
	if creds.Banned {
		_, _ = e.mfaTickets.Delete(ctx, ticketID)
		return nil, ErrAccountBanned
	}
	if !creds.TOTPEnabled || creds.TOTPSecret == "" {
		// TOTP was disabled between the password step and the confirmation.
		_, _ = e.mfaTickets.Delete(ctx, ticketID)
		return nil, ErrTOTPNotConfigured
	}

	if isNumericString(code) && len(code) == e.config.TOTP.Digits {
		return e.confirmWithTOTP(ctx, ticketID, state, creds, code)
	}
	return e.confirmWithRecoveryCode(ctx, ticketID, state, code)
}

func (e *Engine) confirmWithTOTP(
	ctx context.Context,
	ticketID string,
	state *stores.MFATicket,
	creds *stores.Credentials,
	code string,
) (*LoginResult, error) {
	secret, err := totpBase32.DecodeString(creds.TOTPSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: stored totp secret undecodable", ErrStoreUnavailable)
	}

	ok, counter, skew, err := e.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// A counter at or below the stored floor is a replay of an already
	// accepted code, even inside the skew window.
	if ok && counter <= creds.TOTPCounter {
		ok = false
	}
	if !ok {
		return nil, e.mfaFailure(ctx, ticketID, state, ErrTOTPInvalid, "totp_mismatch")
	}

	if err := e.users.SetTOTPCounter(ctx, state.Username, counter); err != nil {
		return nil, translateUserErr(err)
	}
	_, _ = e.mfaTickets.Delete(ctx, ticketID)

	e.metricInc(MetricMFASuccess)
	e.emitAudit(ctx, auditEventMFASuccess, true, state.Username, state.Audience, ticketID, nil, func() map[string]string {
		return map[string]string{"method": "totp", "skew_steps": fmt.Sprintf("%d", skew)}
	})
	return e.issueLoginSession(ctx, state.Username, state.Audience)
}

func (e *Engine) confirmWithRecoveryCode(
	ctx context.Context,
	ticketID string,
	state *stores.MFATicket,
	code string,
) (*LoginResult, error) {
	err := e.users.ConsumeRecoveryCode(ctx, state.Username, internal.HashRecoveryCode(code))
	switch {
	case err == nil:
	case errors.Is(err, stores.ErrRecoveryCodeNotFound):
		e.metricInc(MetricRecoveryCodeFailed)
		return nil, e.mfaFailure(ctx, ticketID, state, ErrRecoveryCodeInvalid, "recovery_code_mismatch")
	default:
		return nil, translateUserErr(err)
	}
	_, _ = e.mfaTickets.Delete(ctx, ticketID)

	e.metricInc(MetricRecoveryCodeUsed)
	e.metricInc(MetricMFASuccess)
	e.emitAudit(ctx, auditEventRecoveryCodeUsed, true, state.Username, state.Audience, ticketID, nil, nil)
	return e.issueLoginSession(ctx, state.Username, state.Audience)
}

// mfaFailure burns one attempt and reports either the wrong-code error or,
// at the limit, attempts-exceeded with the ticket gone.
func (e *Engine) mfaFailure(ctx context.Context, ticketID string, state *stores.MFATicket, cause error, reason string) error {
	exceeded, err := e.mfaTickets.RecordFailure(ctx, ticketID, e.config.TOTP.MaxAttempts)
	if err != nil && !errors.Is(err, stores.ErrMFATicketNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exceeded {
		e.metricInc(MetricMFAAttemptsExceeded)
		e.emitAudit(ctx, auditEventMFAFailure, false, state.Username, state.Audience, ticketID, ErrMFAAttemptsExceeded, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return ErrMFAAttemptsExceeded
	}

	e.metricInc(MetricMFAFailure)
	e.emitAudit(ctx, auditEventMFAFailure, false, state.Username, state.Audience, ticketID, cause, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return cause
}
