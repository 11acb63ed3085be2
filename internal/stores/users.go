package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserExists            = errors.New("user already exists")
	ErrUserAlreadyActive     = errors.New("user already active")
	ErrBanAlreadyInState     = errors.New("ban flag already in requested state")
	ErrRecoveryCodeNotFound  = errors.New("recovery code not found")
	ErrUsersRedisUnavailable = errors.New("users redis unavailable")
)

// User hash field names. All fields are written at create time so later
// HGET calls can distinguish "missing user" from "unset field".
const (
	fieldPasswordHash = "ph"
	fieldActive       = "active"
	fieldBanned       = "banned"
	fieldCreatedAt    = "created_at"
	fieldFailCount    = "fail_count"
	fieldLockedUntil  = "locked_until"
	fieldTOTPSecret   = "totp_secret"
	fieldTOTPEnabled  = "totp_enabled"
	fieldTOTPCounter  = "totp_counter"
)

// Credentials is the decoded user hash.
type Credentials struct {
	PasswordHash string
	Active       bool
	Banned       bool
	CreatedAt    int64
	FailCount    int64
	LockedUntil  int64
	TOTPSecret   string
	TOTPEnabled  bool
	TOTPCounter  int64
}

// createUserLua writes the user hash and seeds the default-audience
// metadata only if no hash exists yet. The existence check and the record
// write happen in one atomic step, so two concurrent registrations of the
// same username cannot both succeed.
//
// KEYS[1] = user hash
// KEYS[2] = audience index set
// KEYS[3] = seeded audience metadata hash
// ARGV[1] = password hash
// ARGV[2] = active flag ("0"/"1")
// ARGV[3] = created-at unix seconds
// ARGV[4] = seeded audience name
// ARGV[5..] = alternating metadata field/value pairs
//
// Returns 1 on create, 0 when the username is taken.
var createUserLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'ph', ARGV[1],
  'active', ARGV[2],
  'banned', '0',
  'created_at', ARGV[3],
  'fail_count', '0',
  'locked_until', '0',
  'totp_secret', '',
  'totp_enabled', '0',
  'totp_counter', '0')
redis.call('SADD', KEYS[2], ARGV[4])
for i = 5, #ARGV, 2 do
  redis.call('HSET', KEYS[3], ARGV[i], ARGV[i+1])
end
return 1
`)

// activateUserLua flips active=true only once.
// Returns -1 when the user does not exist, 0 when already active, 1 on flip.
var activateUserLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'active') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'active', '1')
return 1
`)

// setBannedLua flips the ban flag only when it differs from the requested
// state, so redundant ban/unban calls surface as errors instead of silent
// successes.
// Returns -1 when the user does not exist, 0 when already in state, 1 on flip.
var setBannedLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'banned') == ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'banned', ARGV[1])
return 1
`)

// failLoginLua increments the failure counter and, on crossing the
// threshold, sets locked_until and resets the counter — one atomic step so
// concurrent failures cannot each observe a pre-threshold count.
// ARGV[1] = threshold, ARGV[2] = lock deadline unix seconds.
// Returns {count, locked} where locked is 1 when this call set the lock.
var failLoginLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {-1, 0}
end
local count = redis.call('HINCRBY', KEYS[1], 'fail_count', 1)
local threshold = tonumber(ARGV[1])
if threshold > 0 and count >= threshold then
  redis.call('HSET', KEYS[1], 'locked_until', ARGV[2], 'fail_count', '0')
  return {count, 1}
end
return {count, 0}
`)

// hsetExistingLua updates hash fields only for an existing user.
// Returns 0 when the key is missing, 1 on write.
var hsetExistingLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
for i = 1, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
return 1
`)

// UserStore persists user credential hashes, per-audience metadata and
// recovery code digests in Redis.
type UserStore struct {
	redis redis.UniversalClient
}

func NewUserStore(redisClient redis.UniversalClient) *UserStore {
	return &UserStore{redis: redisClient}
}

func (s *UserStore) userKey(username string) string {
	return "iu:" + username
}

func (s *UserStore) audienceSetKey(username string) string {
	return "iua:" + username
}

func (s *UserStore) metadataKey(username, audience string) string {
	return "ium:" + username + ":" + audience
}

func (s *UserStore) recoveryKey(username string) string {
	return "imr:" + username
}

// Create writes a fresh user record seeded with metadata for one audience.
// Fails with ErrUserExists when the username is already taken.
func (s *UserStore) Create(
	ctx context.Context,
	username, passwordHash string,
	active bool,
	audience string,
	metadataSeed map[string]string,
) error {
	args := make([]interface{}, 0, 4+2*len(metadataSeed))
	args = append(args, passwordHash, boolField(active), time.Now().Unix(), audience)
	for k, v := range metadataSeed {
		args = append(args, k, v)
	}

	keys := []string{s.userKey(username), s.audienceSetKey(username), s.metadataKey(username, audience)}
	created, err := createUserLua.Run(ctx, s.redis, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	if created == 0 {
		return ErrUserExists
	}
	return nil
}

// GetCredentials loads the full user hash.
func (s *UserStore) GetCredentials(ctx context.Context, username string) (*Credentials, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrUserNotFound
	}

	return &Credentials{
		PasswordHash: fields[fieldPasswordHash],
		Active:       fields[fieldActive] == "1",
		Banned:       fields[fieldBanned] == "1",
		CreatedAt:    parseIntField(fields[fieldCreatedAt]),
		FailCount:    parseIntField(fields[fieldFailCount]),
		LockedUntil:  parseIntField(fields[fieldLockedUntil]),
		TOTPSecret:   fields[fieldTOTPSecret],
		TOTPEnabled:  fields[fieldTOTPEnabled] == "1",
		TOTPCounter:  parseIntField(fields[fieldTOTPCounter]),
	}, nil
}

// Exists reports whether a user record is present.
func (s *UserStore) Exists(ctx context.Context, username string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.userKey(username)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	return n == 1, nil
}

// Activate flips active=true exactly once.
func (s *UserStore) Activate(ctx context.Context, username string) error {
	res, err := activateUserLua.Run(ctx, s.redis, []string{s.userKey(username)}).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	switch res {
	case -1:
		return ErrUserNotFound
	case 0:
		return ErrUserAlreadyActive
	default:
		return nil
	}
}

// SetBanned flips the ban flag, rejecting no-op transitions.
func (s *UserStore) SetBanned(ctx context.Context, username string, banned bool) error {
	res, err := setBannedLua.Run(ctx, s.redis, []string{s.userKey(username)}, boolField(banned)).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	switch res {
	case -1:
		return ErrUserNotFound
	case 0:
		return ErrBanAlreadyInState
	default:
		return nil
	}
}

// IsBanned is the cheap ban probe consumed by session verification and the
// login flow before any password hashing.
func (s *UserStore) IsBanned(ctx context.Context, username string) (bool, error) {
	val, err := s.redis.HGet(ctx, s.userKey(username), fieldBanned).Result()
	if errors.Is(err, redis.Nil) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	return val == "1", nil
}

// RecordLoginFailure bumps the failure counter; crossing the threshold sets
// locked_until to now+lockFor and resets the counter. Returns the count
// after the increment and whether this failure triggered the lock.
func (s *UserStore) RecordLoginFailure(
	ctx context.Context,
	username string,
	threshold int64,
	lockFor time.Duration,
) (int64, bool, error) {
	deadline := time.Now().Add(lockFor).Unix()
	res, err := failLoginLua.Run(ctx, s.redis, []string{s.userKey(username)}, threshold, deadline).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("%w: unexpected lua result", ErrUsersRedisUnavailable)
	}
	if res[0] == -1 {
		return 0, false, ErrUserNotFound
	}
	return res[0], res[1] == 1, nil
}

// ResetLoginFailures clears the failure counter and any lock deadline.
func (s *UserStore) ResetLoginFailures(ctx context.Context, username string) error {
	return s.setFields(ctx, username, fieldFailCount, "0", fieldLockedUntil, "0")
}

// SetPasswordHash replaces the stored password hash for an existing user.
func (s *UserStore) SetPasswordHash(ctx context.Context, username, passwordHash string) error {
	return s.setFields(ctx, username, fieldPasswordHash, passwordHash)
}

// SetTOTPSecret stores an enrolled-but-unconfirmed TOTP secret.
func (s *UserStore) SetTOTPSecret(ctx context.Context, username, secret string) error {
	return s.setFields(ctx, username, fieldTOTPSecret, secret, fieldTOTPEnabled, "0", fieldTOTPCounter, "0")
}

// EnableTOTP marks the previously stored secret as confirmed.
func (s *UserStore) EnableTOTP(ctx context.Context, username string) error {
	return s.setFields(ctx, username, fieldTOTPEnabled, "1")
}

// DisableTOTP clears the secret, the enabled flag and the replay counter.
func (s *UserStore) DisableTOTP(ctx context.Context, username string) error {
	return s.setFields(ctx, username, fieldTOTPSecret, "", fieldTOTPEnabled, "0", fieldTOTPCounter, "0")
}

// SetTOTPCounter advances the last-accepted time-step counter, which blocks
// replay of an already-used code.
func (s *UserStore) SetTOTPCounter(ctx context.Context, username string, counter int64) error {
	return s.setFields(ctx, username, fieldTOTPCounter, strconv.FormatInt(counter, 10))
}

func (s *UserStore) setFields(ctx context.Context, username string, pairs ...interface{}) error {
	res, err := hsetExistingLua.Run(ctx, s.redis, []string{s.userKey(username)}, pairs...).Int()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	if res == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetMetadata reads metadata for the given audiences. When fields is empty
// every field of each audience is returned; otherwise only the named ones.
func (s *UserStore) GetMetadata(
	ctx context.Context,
	username string,
	audiences []string,
	fields []string,
) (map[string]map[string]string, error) {
	exists, err := s.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	pipe := s.redis.Pipeline()
	full := make([]*redis.MapStringStringCmd, 0, len(audiences))
	partial := make([]*redis.SliceCmd, 0, len(audiences))
	for _, aud := range audiences {
		if len(fields) == 0 {
			full = append(full, pipe.HGetAll(ctx, s.metadataKey(username, aud)))
		} else {
			partial = append(partial, pipe.HMGet(ctx, s.metadataKey(username, aud), fields...))
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}

	out := make(map[string]map[string]string, len(audiences))
	for i, aud := range audiences {
		values := map[string]string{}
		if len(fields) == 0 {
			values = full[i].Val()
		} else {
			for j, raw := range partial[i].Val() {
				if str, ok := raw.(string); ok {
					values[fields[j]] = str
				}
			}
		}
		out[aud] = values
	}
	return out, nil
}

// UpdateMetadata applies adds and removes within one audience atomically.
// Removes are issued after adds, so a remove wins over an add of the same
// key within one batch.
func (s *UserStore) UpdateMetadata(
	ctx context.Context,
	username, audience string,
	add map[string]string,
	remove []string,
) error {
	exists, err := s.Exists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	metaKey := s.metadataKey(username, audience)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.audienceSetKey(username), audience)
		if len(add) > 0 {
			pairs := make([]interface{}, 0, 2*len(add))
			for k, v := range add {
				pairs = append(pairs, k, v)
			}
			pipe.HSet(ctx, metaKey, pairs...)
		}
		if len(remove) > 0 {
			pipe.HDel(ctx, metaKey, remove...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	return nil
}

// Audiences lists every audience that has carried metadata for the user.
func (s *UserStore) Audiences(ctx context.Context, username string) ([]string, error) {
	members, err := s.redis.SMembers(ctx, s.audienceSetKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	return members, nil
}

// ReplaceRecoveryCodes swaps the full set of recovery code digests. The old
// set is dropped in the same transaction, so a regeneration invalidates
// every previously issued code.
func (s *UserStore) ReplaceRecoveryCodes(ctx context.Context, username string, hashes [][32]byte) error {
	key := s.recoveryKey(username)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(hashes) > 0 {
			members := make([]interface{}, len(hashes))
			for i, h := range hashes {
				members[i] = string(h[:])
			}
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	return nil
}

// ConsumeRecoveryCode removes one digest if present. SREM is atomic, so a
// double-submit of the same code fails the second time.
func (s *UserStore) ConsumeRecoveryCode(ctx context.Context, username string, hash [32]byte) error {
	removed, err := s.redis.SRem(ctx, s.recoveryKey(username), string(hash[:])).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	if removed == 0 {
		return ErrRecoveryCodeNotFound
	}
	return nil
}

// RecoveryCodeCount reports how many unused recovery codes remain.
func (s *UserStore) RecoveryCodeCount(ctx context.Context, username string) (int64, error) {
	n, err := s.redis.SCard(ctx, s.recoveryKey(username)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUsersRedisUnavailable, err)
	}
	return n, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseIntField(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
