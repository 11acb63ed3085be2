package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
)

// VerifySession validates a session token end to end. Signature and expiry
// are checked locally first, so forged and stale tokens never reach the
// store; surviving tokens are then checked against the revocation marker,
// the subject watermark and the ban flag in that order. A banned or
// logged-out user therefore loses already-issued tokens immediately.
func (e *Engine) VerifySession(ctx context.Context, token string) (*SessionClaims, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metricObserve(MetricVerifyLatency, time.Since(start)) }()
	}

	claims, err := e.tokens.Parse(token)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	username := claims.Username()
	revoked, watermark, err := e.sessions.State(ctx, claims.ID, username)
	if err != nil {
		return nil, translateSessionErr(err)
	}
	if revoked || issuedAtOrBefore(claims, watermark) {
		e.metricInc(MetricSessionRejected)
		e.emitAudit(ctx, auditEventSessionRejected, false, username, claims.SessionAudience(), claims.ID, ErrSessionRevoked, nil)
		return nil, ErrSessionRevoked
	}

	banned, err := e.users.IsBanned(ctx, username)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			e.metricInc(MetricSessionRejected)
			return nil, ErrSessionInvalid
		}
		return nil, translateUserErr(err)
	}
	if banned {
		e.metricInc(MetricSessionRejected)
		e.emitAudit(ctx, auditEventSessionRejected, false, username, claims.SessionAudience(), claims.ID, ErrAccountBanned, nil)
		return nil, ErrAccountBanned
	}

	e.metricInc(MetricSessionVerified)
	return claims, nil
}

// IntrospectSession reports a token's state without side effects beyond
// metrics. Unlike VerifySession it answers for dead tokens too, carrying
// the reason instead of an error.
func (e *Engine) IntrospectSession(ctx context.Context, token string) (*SessionInfo, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	claims, err := e.tokens.Parse(token)
	if err != nil {
		info := &SessionInfo{Reason: "invalid"}
		if errors.Is(err, jwt.ErrExpired) {
			info.Reason = "expired"
		}
		return info, nil
	}

	info := &SessionInfo{
		Username: claims.Username(),
		Audience: claims.SessionAudience(),
		JTI:      claims.ID,
		Extra:    claims.Extra,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	revoked, watermark, err := e.sessions.State(ctx, claims.ID, info.Username)
	if err != nil {
		return nil, translateSessionErr(err)
	}
	if revoked || issuedAtOrBefore(claims, watermark) {
		info.Reason = "revoked"
		return info, nil
	}

	banned, err := e.users.IsBanned(ctx, info.Username)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			info.Reason = "invalid"
			return info, nil
		}
		return nil, translateUserErr(err)
	}
	if banned {
		info.Reason = "banned"
		return info, nil
	}

	info.Active = true
	return info, nil
}

// issuedAtOrBefore implements the watermark rule: a token issued at or
// before the revoke-all instant is dead. Both sides are Unix milliseconds,
// so a session issued just after a revoke-all — the password-change-then-
// login sequence — survives even inside the same second. Tokens without
// any issue time are treated as predating any watermark.
func issuedAtOrBefore(claims *SessionClaims, watermark int64) bool {
	if watermark == 0 {
		return false
	}
	issued := claims.IssuedAtMilli()
	if issued == 0 {
		return true
	}
	return issued <= watermark
}

// SessionTTL reports the configured access token lifetime.
func (e *Engine) SessionTTL() (time.Duration, error) {
	if err := e.checkReady(); err != nil {
		return 0, err
	}
	return e.tokens.AccessTTL(), nil
}
