package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLivenessMissing           = errors.New("challenge liveness entry missing")
	ErrLivenessMismatch          = errors.New("challenge liveness fingerprint mismatch")
	ErrChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// consumeChallengeLua performs GET→compare→DEL in one atomic step so the
// same challenge token can never be honored twice, even under concurrent
// submission.
// KEYS[1] = liveness key, ARGV[1] = expected fingerprint bytes.
// Returns 1 on consume, 0 on fingerprint mismatch, -1 when absent/expired.
var consumeChallengeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return -1
end
if data ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

// ChallengeStore tracks liveness of issued challenge tokens. A token is
// valid only while its nonce-keyed entry exists; consuming the entry
// retires the token. Issuing a new challenge for the same purpose simply
// writes a new entry — older tokens die with their own TTLs.
type ChallengeStore struct {
	redis redis.UniversalClient
}

func NewChallengeStore(redisClient redis.UniversalClient) *ChallengeStore {
	return &ChallengeStore{redis: redisClient}
}

func (s *ChallengeStore) key(nonce string) string {
	return "icn:" + nonce
}

// Put records a freshly issued challenge. The fingerprint binds the entry to
// the token's payload so a forged token cannot ride on someone else's nonce.
func (s *ChallengeStore) Put(ctx context.Context, nonce string, fingerprint [32]byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(nonce), string(fingerprint[:]), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// Consume retires the entry on a fingerprint match. A missing entry means
// the token expired or was already used; a mismatch means the token does not
// correspond to the entry under its nonce.
func (s *ChallengeStore) Consume(ctx context.Context, nonce string, fingerprint [32]byte) error {
	res, err := consumeChallengeLua.Run(ctx, s.redis, []string{s.key(nonce)}, string(fingerprint[:])).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	switch res {
	case -1:
		return ErrLivenessMissing
	case 0:
		return ErrLivenessMismatch
	default:
		return nil
	}
}
