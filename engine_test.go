package goIdentity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/mail"
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

// testConfig returns a configuration with activation disabled and argon2
// at floor costs so flow tests stay fast. Tests that exercise the
// activation challenge opt back in.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("test-signing-key-0123456789abcdef")
	cfg.Challenge.Key = []byte("test-challenge-key-32-bytes-long")
	cfg.Registration.RequireActivation = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *mail.ChannelDeliverer, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	deliverer := mail.NewChannelDeliverer(8)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDeliverer(deliverer).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, deliverer, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// registerActive creates an active user and returns its session token.
// Requires a config with RequireActivation disabled.
func registerActive(t *testing.T, engine *Engine, username, password string) string {
	t.Helper()

	res, err := engine.Register(context.Background(), username, password, "", nil)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.RequiresActivation || res.Token == "" {
		t.Fatalf("expected immediate session, got %+v", res)
	}
	return res.Token
}

// challengeTokenFromMail extracts the indented challenge token line from a
// delivered lifecycle mail.
func challengeTokenFromMail(t *testing.T, deliverer *mail.ChannelDeliverer) string {
	t.Helper()

	select {
	case delivery := <-deliverer.Deliveries():
		for _, line := range strings.Split(delivery.Message.TextBody, "\n") {
			if strings.HasPrefix(line, "    ") {
				return strings.TrimSpace(line)
			}
		}
		t.Fatalf("no token line in mail body:\n%s", delivery.Message.TextBody)
	default:
		t.Fatal("expected a delivered mail")
	}
	return ""
}

func drainDeliveries(deliverer *mail.ChannelDeliverer) {
	for {
		select {
		case <-deliverer.Deliveries():
		default:
			return
		}
	}
}

func TestBuilderRequiresRedis(t *testing.T) {
	_, err := New().WithConfig(testConfig()).Build()
	if err == nil {
		t.Fatal("expected Build to fail without redis")
	}
}

func TestBuilderRejectsDoubleBuild(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	builder := New().WithConfig(testConfig()).WithRedis(rdb)
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsBadChallengeKey(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.Challenge.Key = []byte("short")

	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected Build to reject a non-32-byte challenge key")
	}
}

func TestEngineCloseIsIdempotent(t *testing.T) {
	engine, _, done := newTestEngine(t, testConfig())
	defer done()

	engine.Close()
	engine.Close()
}

func TestSessionTTLReportsAccessTTL(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTTL = 42 * time.Minute

	engine, _, done := newTestEngine(t, cfg)
	defer done()

	ttl, err := engine.SessionTTL()
	if err != nil {
		t.Fatalf("SessionTTL failed: %v", err)
	}
	if ttl != 42*time.Minute {
		t.Fatalf("expected 42m, got %s", ttl)
	}
}
