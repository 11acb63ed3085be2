package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func hs256Manager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "goidentity",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParse(t *testing.T) {
	m := hs256Manager(t, 5*time.Minute)

	token, jti, expiresAt, err := m.Issue("alice@example.com", "app", map[string]string{"plan": "pro"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if jti == "" {
		t.Fatal("expected a jti")
	}
	if until := time.Until(expiresAt); until < 4*time.Minute || until > 6*time.Minute {
		t.Fatalf("unexpected expiry window: %v", until)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Username() != "alice@example.com" {
		t.Fatalf("unexpected subject %q", claims.Username())
	}
	if claims.SessionAudience() != "app" {
		t.Fatalf("unexpected audience %q", claims.SessionAudience())
	}
	if claims.ID != jti {
		t.Fatalf("claims jti %q != issued jti %q", claims.ID, jti)
	}
	if claims.Extra["plan"] != "pro" {
		t.Fatalf("extra claims lost: %+v", claims.Extra)
	}
}

func TestIssueCarriesMillisecondIssueInstant(t *testing.T) {
	m := hs256Manager(t, 5*time.Minute)

	before := time.Now().UnixMilli()
	token, _, _, err := m.Issue("alice@example.com", "app", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	after := time.Now().UnixMilli()

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	ms := claims.IssuedAtMilli()
	if ms < before || ms > after {
		t.Fatalf("issue instant %d outside [%d, %d]", ms, before, after)
	}
	if claims.IssuedAt == nil || ms/1000 != claims.IssuedAt.Time.Unix() {
		t.Fatalf("millisecond instant %d disagrees with iat %v", ms, claims.IssuedAt)
	}

	// Tokens without the millisecond claim fall back to the start of
	// their iat second.
	legacy := &SessionClaims{RegisteredClaims: claims.RegisteredClaims}
	if got := legacy.IssuedAtMilli(); got != claims.IssuedAt.Time.UnixMilli() {
		t.Fatalf("fallback instant %d != iat start of second %d", got, claims.IssuedAt.Time.UnixMilli())
	}
}

func TestEachIssueGetsFreshJTI(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	_, jti1, _, err := m.Issue("alice@example.com", "app", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	_, jti2, _, err := m.Issue("alice@example.com", "app", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if jti1 == jti2 {
		t.Fatal("two sessions shared a jti")
	}
}

func TestParseExpiredToken(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	// Sign an already-expired token with the same key, far enough in
	// the past that leeway cannot save it.
	claims := SessionClaims{
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "alice@example.com",
			Audience:  gjwt.ClaimStrings{"app"},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "goidentity",
			ID:        "jti-1",
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).
		SignedString([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice@example.com",
		ID:        "jti-1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).
		SignedString([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong algorithm, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	token, _, _, err := m.Issue("alice@example.com", "app", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	tampered := []byte(token)
	tampered[len(tampered)/2] ^= 0x01
	if _, err := m.Parse(string(tampered)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for tampered token, got %v", err)
	}
}

func TestParseRejectsMissingJTIOrSubject(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	for name, claims := range map[string]SessionClaims{
		"no jti": {RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "alice@example.com",
			Issuer:    "goidentity",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		}},
		"no subject": {RegisteredClaims: gjwt.RegisteredClaims{
			ID:        "jti-1",
			Issuer:    "goidentity",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		}},
	} {
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).
			SignedString([]byte("0123456789abcdef0123456789abcdef"))
		if err != nil {
			t.Fatalf("%s: sign: %v", name, err)
		}
		if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestParseRejectsFarFutureIAT(t *testing.T) {
	m := hs256Manager(t, time.Minute)

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "alice@example.com",
		ID:        "jti-1",
		Issuer:    "goidentity",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(25 * time.Hour)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Second)),
	}}
	// iat in the far future relative to MaxFutureIAT.
	claims.IssuedAt = gjwt.NewNumericDate(time.Now().Add(11 * time.Minute))
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).
		SignedString([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for far-future iat, got %v", err)
	}
}

func TestEd25519RoundTripWithKeyRotation(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)

	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		Issuer:        "goidentity",
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
			"k2": pub2,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, _, err := m.Issue("alice@example.com", "app", nil)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: make([]byte, 32)}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short HS256 key to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected ed25519 without keys to be rejected")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: "rsa"}); err == nil {
		t.Fatal("expected unknown method to be rejected")
	}
}
