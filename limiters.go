package goIdentity

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/internal/rate"
)

// flowLimiter binds one flow's configured window to the shared sliding
// window limiter and translates its errors into the flow's sentinel.
type flowLimiter struct {
	limiter   *rate.Limiter
	operation string
	window    RateWindow
	limitErr  error
}

func newFlowLimiter(limiter *rate.Limiter, operation string, window RateWindow, limitErr error) *flowLimiter {
	return &flowLimiter{
		limiter:   limiter,
		operation: operation,
		window:    window,
		limitErr:  limitErr,
	}
}

// Enforce counts the attempt and rejects it when the window is full. The
// attempt still counts toward future windows even when rejected. A zero Max
// disables the limit; an empty subject is never limited.
func (l *flowLimiter) Enforce(ctx context.Context, subject string) error {
	if l == nil || l.window.Max <= 0 || subject == "" {
		return nil
	}

	err := l.limiter.Check(ctx, l.operation, subject, l.window.Window, l.window.Max)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return l.limitErr
	default:
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
}

// Reset clears the subject's window, used after a successful login so a
// legitimate user does not stay penalized for earlier typos.
func (l *flowLimiter) Reset(ctx context.Context, subject string) error {
	if l == nil || l.window.Max <= 0 || subject == "" {
		return nil
	}
	if err := l.limiter.Reset(ctx, l.operation, subject); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
