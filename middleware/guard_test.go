package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
)

func newGuardedServer(t *testing.T) (*goIdentity.Engine, http.Handler, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := goIdentity.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("test-signing-key-0123456789abcdef")
	cfg.Challenge.Key = []byte("test-challenge-key-32-bytes-long")
	cfg.Registration.RequireActivation = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := goIdentity.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	handler := RequireSession(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Error("expected claims in request context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(claims.Username()))
	}))

	return engine, handler, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRequireSessionAllowsValidToken(t *testing.T) {
	engine, handler, done := newGuardedServer(t)
	defer done()

	res, err := engine.Register(context.Background(), "alice@example.com", "correct-horse-battery", "", nil)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "alice@example.com" {
		t.Fatalf("expected username in body, got %q", rec.Body.String())
	}
}

func TestRequireSessionRejectsMissingOrBadToken(t *testing.T) {
	_, handler, done := newGuardedServer(t)
	defer done()

	for _, header := range []string{"", "Bearer ", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestRequireSessionRejectsRevokedToken(t *testing.T) {
	engine, handler, done := newGuardedServer(t)
	defer done()

	res, err := engine.Register(context.Background(), "alice@example.com", "correct-horse-battery", "", nil)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := engine.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked token, got %d", rec.Code)
	}
}
