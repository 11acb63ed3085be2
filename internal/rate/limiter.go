package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "irl"

// Limiter is a sliding-window counter over a Redis sorted set, shared by
// every throttled operation in the engine. Each attempt inserts a unique
// member scored with its timestamp; the window is pruned and counted in
// the same atomic batch, so concurrent callers never observe a stale
// cardinality between prune and count.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

func windowKey(operation, subject string) string {
	return keyPrefix + ":" + operation + ":" + subject
}

// Allow records one attempt for (operation, subject) and returns the
// post-prune cardinality of the window. The caller compares the count
// against its own maximum; the marker is NOT rolled back on rejection,
// so rejected attempts still count toward future windows.
func (l *Limiter) Allow(ctx context.Context, operation, subject string, window time.Duration) (int64, error) {
	key := windowKey(operation, subject)
	nowMillis := time.Now().UnixMilli()
	cutoff := nowMillis - window.Milliseconds()

	var card *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(nowMillis),
			Member: uuid.NewString(),
		})
		pipe.PExpire(ctx, key, window)
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return card.Val(), nil
}

// Check runs [Limiter.Allow] and converts an over-budget count into
// [ErrRateLimited].
func (l *Limiter) Check(ctx context.Context, operation, subject string, window time.Duration, max int) error {
	count, err := l.Allow(ctx, operation, subject, window)
	if err != nil {
		return err
	}
	if count > int64(max) {
		return fmt.Errorf("%w: %s", ErrRateLimited, operation)
	}
	return nil
}

// Count returns the current window cardinality without recording an
// attempt. Missing windows report zero.
func (l *Limiter) Count(ctx context.Context, operation, subject string) (int64, error) {
	count, err := l.redis.ZCard(ctx, windowKey(operation, subject)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

// Reset clears the window for (operation, subject). Called after a
// successful login so earlier failures stop counting against the user.
func (l *Limiter) Reset(ctx context.Context, operation, subject string) error {
	if err := l.redis.Del(ctx, windowKey(operation, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
