package goIdentity

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
)

// newAuditDispatcher wires the configured sink behind the async
// dispatcher. Disabled audit means no dispatcher at all, and emitAudit
// short-circuits on the nil.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	return internalaudit.NewDispatcher(sink, cfg.BufferSize, cfg.DropIfFull)
}

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLoginLocked             = "login_locked"
	auditEventRegisterSuccess         = "register_success"
	auditEventRegisterDuplicate       = "register_duplicate"
	auditEventChallengeIssued         = "challenge_issued"
	auditEventChallengeSuppressed     = "challenge_suppressed"
	auditEventActivationSuccess       = "activation_success"
	auditEventActivationFailure       = "activation_failure"
	auditEventChallengeReplay         = "challenge_replay"
	auditEventPasswordResetRequest    = "password_reset_request"
	auditEventPasswordResetConfirm    = "password_reset_confirm"
	auditEventPasswordChangeSuccess   = "password_change_success"
	auditEventPasswordChangeFailure   = "password_change_failure"
	auditEventLogoutSession           = "logout_session"
	auditEventLogoutAll               = "logout_all"
	auditEventSessionRejected         = "session_rejected"
	auditEventBanApplied              = "ban_applied"
	auditEventBanLifted               = "ban_lifted"
	auditEventTOTPEnrollmentRequested = "totp_enrollment_requested"
	auditEventTOTPEnabled             = "totp_enabled"
	auditEventTOTPDisabled            = "totp_disabled"
	auditEventMFARequired             = "mfa_required"
	auditEventMFASuccess              = "mfa_success"
	auditEventMFAFailure              = "mfa_failure"
	auditEventRecoveryCodeUsed        = "recovery_code_used"
	auditEventRecoveryCodesGenerated  = "recovery_codes_generated"
	auditEventRateLimitTriggered      = "rate_limit_triggered"
	auditEventPrivilegedActivation    = "privileged_activation"
)

// AuditErrorCode is the stable discriminator written into audit events for
// failed operations.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrAlreadyActive      AuditErrorCode = "already_active"
	auditErrInactive           AuditErrorCode = "account_inactive"
	auditErrBanned             AuditErrorCode = "account_banned"
	auditErrLocked             AuditErrorCode = "account_locked"
	auditErrBanState           AuditErrorCode = "ban_already_in_state"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrChallengeExpired   AuditErrorCode = "challenge_expired"
	auditErrChallengeMismatch  AuditErrorCode = "challenge_mismatch"
	auditErrTOTPInvalid        AuditErrorCode = "totp_invalid"
	auditErrMFATicket          AuditErrorCode = "mfa_ticket_invalid"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrRecoveryInvalid    AuditErrorCode = "recovery_code_invalid"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrSessionRevoked     AuditErrorCode = "session_revoked"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrValidation         AuditErrorCode = "invalid_request"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit builds and dispatches one event. metadataBuilder is lazy: it
// only runs when a dispatcher is wired, so disabled audit costs nothing.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	audience string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if requestID := requestIDFromContext(ctx); requestID != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["request_id"] = requestID
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Username:  username,
		Audience:  audience,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, operation, subject string, metric MetricID) {
	e.metricInc(metric)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", "", nil, func() map[string]string {
		return map[string]string{
			"operation": operation,
			"subject":   subject,
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrUserExists):
		return auditErrDuplicate
	case errors.Is(err, ErrAlreadyActive):
		return auditErrAlreadyActive
	case errors.Is(err, ErrAccountInactive):
		return auditErrInactive
	case errors.Is(err, ErrAccountBanned):
		return auditErrBanned
	case errors.Is(err, ErrAccountLocked):
		return auditErrLocked
	case errors.Is(err, ErrBanAlreadySet), errors.Is(err, ErrBanActionRequired):
		return auditErrBanState
	case errors.Is(err, ErrChallengeInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeExpired
	case errors.Is(err, ErrChallengeMismatch):
		return auditErrChallengeMismatch
	case errors.Is(err, ErrTOTPInvalid),
		errors.Is(err, ErrTOTPNotConfigured),
		errors.Is(err, ErrTOTPAlreadyEnabled):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrMFATicketInvalid),
		errors.Is(err, ErrMFATicketExpired),
		errors.Is(err, ErrMFARequired):
		return auditErrMFATicket
	case errors.Is(err, ErrMFAAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrRecoveryCodeInvalid),
		errors.Is(err, ErrRecoveryNotSupported):
		return auditErrRecoveryInvalid
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrSessionInvalid):
		return auditErrInvalidToken
	case IsRateLimited(err):
		return auditErrRateLimited
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case IsTransient(err):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
