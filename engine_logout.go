package goIdentity

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
)

// Logout revokes the session carried by the token. The revocation marker
// lives exactly as long as the token could still verify; logging out an
// already expired token is a successful no-op.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	claims, err := e.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil
		}
		return ErrSessionInvalid
	}

	remaining := e.config.JWT.AccessTTL
	if claims.ExpiresAt != nil {
		remaining = time.Until(claims.ExpiresAt.Time)
	}
	remaining += e.config.Session.RevocationLeeway
	if err := e.sessions.Revoke(ctx, claims.ID, remaining); err != nil {
		return translateSessionErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, claims.Username(), claims.SessionAudience(), claims.ID, nil, nil)
	return nil
}

// LogoutAll revokes every outstanding session of a user by advancing the
// subject watermark: tokens issued at or before now stop verifying. The
// watermark outlives the longest possible token so drift cannot resurrect
// one.
func (e *Engine) LogoutAll(ctx context.Context, username string) error {
	if err := e.checkReady(); err != nil {
		return err
	}

	username = normalizeUsername(username)
	ttl := e.config.JWT.AccessTTL + e.config.Session.RevocationLeeway
	if err := e.sessions.RevokeAll(ctx, username, ttl); err != nil {
		return translateSessionErr(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, username, "", "", nil, nil)
	return nil
}
