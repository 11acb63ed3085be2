package rate

import "errors"

var (
	// ErrRateLimited signals the caller exceeded the window budget for an operation.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transient store failures; it must never be
	// conflated with a domain rejection.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
