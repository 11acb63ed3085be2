package test

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/mail"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newLifecycleEngine builds an engine over miniredis through nothing but
// the exported API, the way a consumer would. Argon2 runs at floor costs
// so the end-to-end flows stay fast.
func newLifecycleEngine(t *testing.T, mutate func(*goIdentity.Config)) (*goIdentity.Engine, *mail.ChannelDeliverer, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := goIdentity.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("test-signing-key-0123456789abcdef")
	cfg.Challenge.Key = []byte("test-challenge-key-32-bytes-long")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if mutate != nil {
		mutate(&cfg)
	}

	deliverer := mail.NewChannelDeliverer(8)
	engine, err := goIdentity.New().
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

// challengeToken pulls the indented token line out of the next delivered
// lifecycle mail.
func challengeToken(t *testing.T, deliverer *mail.ChannelDeliverer) string {
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

// totpCode derives the six-digit SHA1 code for the enrollment secret at
// the given step offset from now. Offsets keep successive logins ahead of
// the replay floor the engine records per accepted code.
func totpCode(t *testing.T, secret string, offset int64) string {
	t.Helper()

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil {
		t.Fatalf("undecodable enrollment secret %q: %v", secret, err)
	}

	counter := time.Now().Unix()/30 + offset
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	o := sum[len(sum)-1] & 0x0f
	code := (binary.BigEndian.Uint32(sum[o:o+4]) & 0x7fffffff) % 1000000
	return fmt.Sprintf("%06d", code)
}
