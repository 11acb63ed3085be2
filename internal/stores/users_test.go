package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func mustCreateUser(t *testing.T, s *UserStore, username string) {
	t.Helper()
	err := s.Create(context.Background(), username, "argon2id-hash", false, "app", map[string]string{"plan": "free"})
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", username, err)
	}
}

func TestCreateAndGetCredentials(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")

	creds, err := s.GetCredentials(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetCredentials failed: %v", err)
	}
	if creds.PasswordHash != "argon2id-hash" {
		t.Fatalf("unexpected password hash %q", creds.PasswordHash)
	}
	if creds.Active || creds.Banned || creds.TOTPEnabled {
		t.Fatalf("fresh user has unexpected flags: %+v", creds)
	}
	if creds.CreatedAt == 0 {
		t.Fatal("expected created_at to be set")
	}

	meta, err := s.GetMetadata(context.Background(), "alice@example.com", []string{"app"}, nil)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta["app"]["plan"] != "free" {
		t.Fatalf("expected seeded metadata, got %+v", meta)
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")

	err := s.Create(context.Background(), "alice@example.com", "other-hash", false, "app", nil)
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	// The losing create must not clobber the original record.
	creds, err := s.GetCredentials(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetCredentials failed: %v", err)
	}
	if creds.PasswordHash != "argon2id-hash" {
		t.Fatalf("duplicate create overwrote the record: %q", creds.PasswordHash)
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = s.Create(context.Background(), "alice@example.com", "hash", false, "app", nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrUserExists) {
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning create, got %d", wins)
	}
}

func TestGetCredentialsUnknownUser(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	_, err := s.GetCredentials(context.Background(), "ghost@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestActivateFlipsOnce(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	if err := s.Activate(ctx, "alice@example.com"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := s.Activate(ctx, "alice@example.com"); !errors.Is(err, ErrUserAlreadyActive) {
		t.Fatalf("expected ErrUserAlreadyActive on second activation, got %v", err)
	}
	if err := s.Activate(ctx, "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	creds, _ := s.GetCredentials(ctx, "alice@example.com")
	if !creds.Active {
		t.Fatal("expected active flag set")
	}
}

func TestSetBannedRejectsNoOpTransition(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	if err := s.SetBanned(ctx, "alice@example.com", false); !errors.Is(err, ErrBanAlreadyInState) {
		t.Fatalf("expected ErrBanAlreadyInState unbanning a non-banned user, got %v", err)
	}
	if err := s.SetBanned(ctx, "alice@example.com", true); err != nil {
		t.Fatalf("SetBanned(true) failed: %v", err)
	}
	if err := s.SetBanned(ctx, "alice@example.com", true); !errors.Is(err, ErrBanAlreadyInState) {
		t.Fatalf("expected ErrBanAlreadyInState banning twice, got %v", err)
	}

	banned, err := s.IsBanned(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("IsBanned failed: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true")
	}

	if err := s.SetBanned(ctx, "alice@example.com", false); err != nil {
		t.Fatalf("SetBanned(false) failed: %v", err)
	}
}

func TestRecordLoginFailureLocksAtThreshold(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		count, locked, err := s.RecordLoginFailure(ctx, "alice@example.com", 3, time.Hour)
		if err != nil {
			t.Fatalf("RecordLoginFailure %d failed: %v", i, err)
		}
		if locked {
			t.Fatalf("locked too early at failure %d", i)
		}
		if count != int64(i) {
			t.Fatalf("failure %d: count = %d", i, count)
		}
	}

	_, locked, err := s.RecordLoginFailure(ctx, "alice@example.com", 3, time.Hour)
	if err != nil {
		t.Fatalf("RecordLoginFailure failed: %v", err)
	}
	if !locked {
		t.Fatal("expected third failure to lock the account")
	}

	creds, _ := s.GetCredentials(ctx, "alice@example.com")
	if creds.LockedUntil <= time.Now().Unix() {
		t.Fatalf("expected locked_until in the future, got %d", creds.LockedUntil)
	}
	if creds.FailCount != 0 {
		t.Fatalf("expected counter reset on lock, got %d", creds.FailCount)
	}
}

func TestResetLoginFailures(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	_, _, _ = s.RecordLoginFailure(ctx, "alice@example.com", 10, time.Hour)
	_, _, _ = s.RecordLoginFailure(ctx, "alice@example.com", 10, time.Hour)

	if err := s.ResetLoginFailures(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ResetLoginFailures failed: %v", err)
	}

	creds, _ := s.GetCredentials(ctx, "alice@example.com")
	if creds.FailCount != 0 || creds.LockedUntil != 0 {
		t.Fatalf("expected cleared counters, got %+v", creds)
	}
}

func TestUpdateMetadataRemoveWinsOverAdd(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	err := s.UpdateMetadata(ctx, "alice@example.com", "app",
		map[string]string{"theme": "dark", "plan": "pro"},
		[]string{"theme"},
	)
	if err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}

	meta, err := s.GetMetadata(ctx, "alice@example.com", []string{"app"}, nil)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if _, ok := meta["app"]["theme"]; ok {
		t.Fatal("expected remove to win over add for the same key")
	}
	if meta["app"]["plan"] != "pro" {
		t.Fatalf("expected plan=pro, got %+v", meta["app"])
	}
}

func TestUpdateMetadataNewAudienceIndexed(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	if err := s.UpdateMetadata(ctx, "alice@example.com", "billing", map[string]string{"tier": "gold"}, nil); err != nil {
		t.Fatalf("UpdateMetadata failed: %v", err)
	}

	audiences, err := s.Audiences(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Audiences failed: %v", err)
	}
	if len(audiences) != 2 {
		t.Fatalf("expected 2 audiences, got %v", audiences)
	}
}

func TestUpdateMetadataUnknownUser(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	err := s.UpdateMetadata(context.Background(), "ghost@example.com", "app", map[string]string{"k": "v"}, nil)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetMetadataSelectedFields(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	_ = s.UpdateMetadata(ctx, "alice@example.com", "app", map[string]string{"theme": "dark"}, nil)

	meta, err := s.GetMetadata(ctx, "alice@example.com", []string{"app"}, []string{"plan", "missing"})
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta["app"]["plan"] != "free" {
		t.Fatalf("expected plan=free, got %+v", meta["app"])
	}
	if _, ok := meta["app"]["missing"]; ok {
		t.Fatal("absent field must not appear in result")
	}
	if _, ok := meta["app"]["theme"]; ok {
		t.Fatal("unselected field must not appear in result")
	}
}

func TestRecoveryCodeConsumeIsSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	h1 := sha256.Sum256([]byte("code-one"))
	h2 := sha256.Sum256([]byte("code-two"))
	if err := s.ReplaceRecoveryCodes(ctx, "alice@example.com", [][32]byte{h1, h2}); err != nil {
		t.Fatalf("ReplaceRecoveryCodes failed: %v", err)
	}

	if err := s.ConsumeRecoveryCode(ctx, "alice@example.com", h1); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if err := s.ConsumeRecoveryCode(ctx, "alice@example.com", h1); !errors.Is(err, ErrRecoveryCodeNotFound) {
		t.Fatalf("expected double-submit to fail, got %v", err)
	}

	n, err := s.RecoveryCodeCount(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("RecoveryCodeCount failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining code, got %d", n)
	}
}

func TestReplaceRecoveryCodesInvalidatesOldSet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	old := sha256.Sum256([]byte("old-code"))
	_ = s.ReplaceRecoveryCodes(ctx, "alice@example.com", [][32]byte{old})

	fresh := sha256.Sum256([]byte("fresh-code"))
	_ = s.ReplaceRecoveryCodes(ctx, "alice@example.com", [][32]byte{fresh})

	if err := s.ConsumeRecoveryCode(ctx, "alice@example.com", old); !errors.Is(err, ErrRecoveryCodeNotFound) {
		t.Fatalf("expected old code to be invalid after regeneration, got %v", err)
	}
	if err := s.ConsumeRecoveryCode(ctx, "alice@example.com", fresh); err != nil {
		t.Fatalf("fresh code should consume: %v", err)
	}
}

func TestTOTPLifecycle(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	mustCreateUser(t, s, "alice@example.com")
	ctx := context.Background()

	if err := s.SetTOTPSecret(ctx, "alice@example.com", "JBSWY3DPEHPK3PXP"); err != nil {
		t.Fatalf("SetTOTPSecret failed: %v", err)
	}
	creds, _ := s.GetCredentials(ctx, "alice@example.com")
	if creds.TOTPEnabled {
		t.Fatal("secret enrollment must not enable TOTP yet")
	}

	if err := s.EnableTOTP(ctx, "alice@example.com"); err != nil {
		t.Fatalf("EnableTOTP failed: %v", err)
	}
	if err := s.SetTOTPCounter(ctx, "alice@example.com", 55667788); err != nil {
		t.Fatalf("SetTOTPCounter failed: %v", err)
	}

	creds, _ = s.GetCredentials(ctx, "alice@example.com")
	if !creds.TOTPEnabled || creds.TOTPSecret != "JBSWY3DPEHPK3PXP" || creds.TOTPCounter != 55667788 {
		t.Fatalf("unexpected TOTP state: %+v", creds)
	}

	if err := s.DisableTOTP(ctx, "alice@example.com"); err != nil {
		t.Fatalf("DisableTOTP failed: %v", err)
	}
	creds, _ = s.GetCredentials(ctx, "alice@example.com")
	if creds.TOTPEnabled || creds.TOTPSecret != "" || creds.TOTPCounter != 0 {
		t.Fatalf("expected cleared TOTP state, got %+v", creds)
	}
}

func TestSetFieldsUnknownUser(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	s := NewUserStore(rdb)
	if err := s.SetPasswordHash(context.Background(), "ghost@example.com", "hash"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStoreUnavailableIsNotNotFound(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewUserStore(rdb)
	mr.Close()

	_, err := s.GetCredentials(context.Background(), "alice@example.com")
	if !errors.Is(err, ErrUsersRedisUnavailable) {
		t.Fatalf("expected ErrUsersRedisUnavailable, got %v", err)
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Fatal("a transport failure must not read as NotFound")
	}
}
