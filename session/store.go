package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("session redis unavailable")

// Store is the revocation side of session management. Sessions themselves
// are never stored — a token is valid by signature alone until either its
// jti gains a revocation marker (logout) or the subject's watermark moves
// past its issue time (logout-all, ban cleanup). Both entries carry TTLs
// bounded by the longest-lived token they could affect, so the store stays
// small without a sweeper.
type Store struct {
	redis redis.UniversalClient
}

func New(redisClient redis.UniversalClient) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) revocationKey(jti string) string {
	return "irv:" + jti
}

func (s *Store) watermarkKey(username string) string {
	return "irva:" + username
}

// Revoke marks one session id as dead for the remaining life of its token.
// A non-positive ttl means the token is already expired and needs no marker.
func (s *Store) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.revocationKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeAll moves the subject watermark to now: every session of the user
// issued at or before this moment is dead, including tokens this instance
// has never seen. The watermark is stored at millisecond precision so a
// session issued right after the revoke-all (password change, then login)
// is not caught by it. ttl must cover the access TTL plus clock leeway.
func (s *Store) RevokeAll(ctx context.Context, username string, ttl time.Duration) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.redis.Set(ctx, s.watermarkKey(username), now, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// State reads the jti marker and the subject watermark in one pipelined
// round trip. The watermark is Unix milliseconds; the caller compares the
// token's issue instant against it: issuedAtMilli <= watermark means
// revoked.
func (s *Store) State(ctx context.Context, jti, username string) (revoked bool, watermark int64, err error) {
	pipe := s.redis.Pipeline()
	markerCmd := pipe.Exists(ctx, s.revocationKey(jti))
	watermarkCmd := pipe.Get(ctx, s.watermarkKey(username))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	revoked = markerCmd.Val() == 1

	switch raw, err := watermarkCmd.Result(); {
	case errors.Is(err, redis.Nil):
		watermark = 0
	case err != nil:
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	default:
		watermark, _ = strconv.ParseInt(raw, 10, 64)
	}

	return revoked, watermark, nil
}
