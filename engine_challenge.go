package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/challenge"
)

// SendActivationChallenge re-issues an activation token for a registered
// but inactive user. Each issued token is independently single-use; issuing
// a new one does not invalidate older unexpired ones.
func (e *Engine) SendActivationChallenge(ctx context.Context, username string) (*ChallengeResult, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	username = normalizeUsername(username)
	if !validUsername(username) {
		return nil, fmt.Errorf("%w: username", ErrValidation)
	}

	subject := clientIPFromContext(ctx)
	if subject == "" {
		subject = username
	}
	if err := e.challengeLimiter.Enforce(ctx, subject); err != nil {
		if errors.Is(err, ErrChallengeRateLimited) {
			e.emitRateLimit(ctx, "challenge", subject, MetricChallengeRateLimited)
		}
		return nil, err
	}

	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		return nil, translateUserErr(err)
	}
	if creds.Banned {
		return nil, ErrAccountBanned
	}
	if creds.Active {
		return nil, ErrAlreadyActive
	}

	if err := e.issueChallenge(ctx, challenge.ActionActivate, username, e.config.DefaultAudience); err != nil {
		return nil, err
	}
	return &ChallengeResult{Queued: true}, nil
}
