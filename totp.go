package goIdentity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

var totpBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// totpVerifier implements RFC 6238 code generation and verification with a
// bounded clock-skew search window.
type totpVerifier struct {
	config TOTPConfig
	issuer string
}

func newTOTPVerifier(cfg TOTPConfig, issuer string) *totpVerifier {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "sha1"
	}
	return &totpVerifier{config: cfg, issuer: issuer}
}

// GenerateSecret returns a fresh random secret and its base32 form.
func (v *totpVerifier) GenerateSecret() ([]byte, string, error) {
	if v == nil {
		return nil, "", ErrEngineNotReady
	}
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	return raw, totpBase32.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// string for authenticator apps.
func (v *totpVerifier) ProvisionURI(secretBase32, account string) string {
	label := url.PathEscape(v.issuer + ":" + account)

	q := url.Values{}
	q.Set("secret", secretBase32)
	q.Set("issuer", v.issuer)
	q.Set("period", strconv.Itoa(int(v.config.Period/time.Second)))
	q.Set("digits", strconv.Itoa(v.config.Digits))
	q.Set("algorithm", strings.ToUpper(v.config.Algorithm))

	return "otpauth://totp/" + label + "?" + q.Encode()
}

// VerifyCode checks the submitted code against the expected codes for now
// and the adjacent skew steps. On a match it returns the matched time-step
// counter (for replay tracking) and the observed skew in steps.
func (v *totpVerifier) VerifyCode(secret []byte, code string, now time.Time) (bool, int64, int, error) {
	if v == nil {
		return false, 0, 0, ErrEngineNotReady
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != v.config.Digits || !isNumericString(trimmed) {
		return false, 0, 0, nil
	}
	if len(secret) == 0 {
		return false, 0, 0, errors.New("empty totp secret")
	}

	baseCounter := now.Unix() / int64(v.config.Period/time.Second)
	for step := -v.config.Skew; step <= v.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		expected, err := hotpCode(secret, counter, v.config.Digits, v.config.Algorithm)
		if err != nil {
			return false, 0, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(trimmed)) == 1 {
			return true, counter, step, nil
		}
	}

	return false, 0, 0, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "", "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
