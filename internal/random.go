package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

const (
	NonceSize          = 16
	mfaSecretSize      = 32
	mfaTicketRawSize   = NonceSize + mfaSecretSize
	recoveryCodeGroups = 2
)

// Nonce is the random identifier embedded in challenge payloads and MFA
// tickets. It doubles as the store key for the matching liveness entry.
type Nonce [NonceSize]byte

func NewNonce() (Nonce, error) {
	var n Nonce
	_, err := rand.Read(n[:])
	return n, err
}

func (n Nonce) String() string {
	return base64.RawURLEncoding.EncodeToString(n[:])
}

func ParseNonce(s string) (Nonce, error) {
	var n Nonce

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return n, err
	}
	if len(raw) != len(n) {
		return n, errors.New("invalid nonce size")
	}

	copy(n[:], raw)
	return n, nil
}

func NewMFASecret() ([mfaSecretSize]byte, error) {
	var secret [mfaSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashMFASecret(secret [mfaSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeMFATicket packs the challenge id and its bearer secret into one
// opaque transport-safe string handed back to the client mid-login.
func EncodeMFATicket(id Nonce, secret [mfaSecretSize]byte) string {
	var raw [mfaTicketRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeMFATicket(ticket string) (Nonce, [mfaSecretSize]byte, error) {
	var (
		id     Nonce
		secret [mfaSecretSize]byte
	)

	raw, err := base64.RawURLEncoding.DecodeString(ticket)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != mfaTicketRawSize {
		return id, secret, errors.New("invalid mfa ticket size")
	}

	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])
	return id, secret, nil
}

// recoveryAlphabet drops easily-confused characters (0/O, 1/I/L).
const recoveryAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"

// NewRecoveryCode produces a human-typable single-use code of the form
// "xxxxx-xxxxx" for the given half-length.
func NewRecoveryCode(groupLen int) (string, error) {
	if groupLen < 4 || groupLen > 16 {
		return "", errors.New("invalid recovery code group length")
	}

	var b strings.Builder
	b.Grow(groupLen*recoveryCodeGroups + recoveryCodeGroups - 1)

	// Each character is drawn with rand.Int so no alphabet position is
	// over-represented; 256 is not a multiple of the alphabet size.
	alphabetLen := big.NewInt(int64(len(recoveryAlphabet)))
	for i := 0; i < groupLen*recoveryCodeGroups; i++ {
		if i > 0 && i%groupLen == 0 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(recoveryAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// HashRecoveryCode canonicalizes and hashes a recovery code for storage.
// Plaintext codes are never persisted.
func HashRecoveryCode(code string) [32]byte {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	return sha256.Sum256([]byte(normalized))
}
