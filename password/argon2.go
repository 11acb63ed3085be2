package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

var ErrMalformedHash = errors.New("malformed password hash")

// Config holds the argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher derives and verifies argon2id password hashes in PHC string form:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt-b64>$<hash-b64>
//
// The cost parameters travel inside each hash, so stored hashes remain
// verifiable after the configured costs change; NeedsUpgrade tells callers
// when a verified hash should be re-derived at current costs.
type Hasher struct {
	config Config
}

func NewHasher(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives a fresh hash under a random salt. The password is used as
// raw bytes, without Unicode normalization.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether the password matches the encoded hash, comparing
// the derived keys in constant time. The costs embedded in the hash are
// used, not the configured ones.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// NeedsUpgrade reports whether the hash was derived at costs below the
// configured ones and should be re-hashed on next successful verification.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	upgrade := h.config.Memory > p.memory ||
		h.config.Time > p.time ||
		h.config.Parallelism > p.parallelism ||
		h.config.KeyLength != uint32(len(p.key))
	return upgrade, nil
}

// Report exposes the configured costs for posture reporting.
func (h *Hasher) Report() Config {
	return h.config
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	var (
		version             int
		p                   phcHash
		saltB64, keyB64     string
		parallelismAsUint32 uint32
	)

	n, err := fmt.Sscanf(encoded, "$"+phcAlgorithm+"$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &p.memory, &p.time, &parallelismAsUint32, &saltB64)
	if err != nil || n != 5 {
		return nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return nil, ErrMalformedHash
	}
	if parallelismAsUint32 == 0 || parallelismAsUint32 > 255 {
		return nil, ErrMalformedHash
	}
	p.parallelism = uint8(parallelismAsUint32)

	// Sscanf's %s grabs the remainder "salt$key" as one token.
	sep := strings.IndexByte(saltB64, '$')
	if sep <= 0 || sep == len(saltB64)-1 {
		return nil, ErrMalformedHash
	}
	keyB64 = saltB64[sep+1:]
	saltB64 = saltB64[:sep]

	if p.salt, err = base64.RawStdEncoding.DecodeString(saltB64); err != nil {
		return nil, ErrMalformedHash
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(keyB64); err != nil {
		return nil, ErrMalformedHash
	}
	if len(p.salt) < int(minSaltLength) || len(p.key) < int(minKeyLength) {
		return nil, ErrMalformedHash
	}
	if p.memory < minMemoryKB || p.time < minTimeCost {
		return nil, ErrMalformedHash
	}

	return &p, nil
}
