package challenge

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
)

const payloadVersion1 = 1

// KeySize is the required codec key length: AES-256.
const KeySize = 32

var (
	// ErrInvalidToken is the single error surfaced for every malformed,
	// corrupted, forged or wrongly keyed token. Callers must not learn
	// which check failed.
	ErrInvalidToken = errors.New("invalid challenge token")

	ErrInvalidKeySize = errors.New("challenge key must be 32 bytes")
)

// Action discriminates what a consumed challenge authorizes.
type Action byte

const (
	ActionActivate      Action = 1
	ActionPasswordReset Action = 2
)

// Payload is the authenticated plaintext carried inside a challenge token.
// The nonce keys the liveness entry that makes the token single-use.
type Payload struct {
	Action     Action
	IssuedAt   int64
	Identifier string
	Audience   string
	Nonce      internal.Nonce
}

// Fingerprint is the digest stored in the liveness entry. It covers every
// payload field, so an entry can only be consumed by the exact token that
// created it.
func (p Payload) Fingerprint() [32]byte {
	encoded, err := encodePayload(p)
	if err != nil {
		// Unreachable for payloads that sealed successfully.
		return sha256.Sum256(nil)
	}
	return sha256.Sum256(encoded)
}

// Codec seals challenge payloads into opaque URL-safe tokens with
// AES-256-GCM. Tokens are confidential and tamper-evident: the recipient
// learns nothing about their contents, and any bit flip fails authentication.
type Codec struct {
	aead cipher.AEAD
}

func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts the payload under a fresh random GCM nonce and returns the
// URL-safe token.
func (c *Codec) Seal(p Payload) (string, error) {
	plaintext, err := encodePayload(p)
	if err != nil {
		return "", err
	}

	gcmNonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, gcmNonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nil, gcmNonce, plaintext, nil)
	raw := make([]byte, 0, len(gcmNonce)+len(sealed))
	raw = append(raw, gcmNonce...)
	raw = append(raw, sealed...)

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Open decrypts and decodes a token. Every failure collapses into
// ErrInvalidToken.
func (c *Codec) Open(token string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, ErrInvalidToken
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return Payload{}, ErrInvalidToken
	}

	gcmNonce := raw[:c.aead.NonceSize()]
	plaintext, err := c.aead.Open(nil, gcmNonce, raw[c.aead.NonceSize():], nil)
	if err != nil {
		return Payload{}, ErrInvalidToken
	}

	p, err := decodePayload(plaintext)
	if err != nil {
		return Payload{}, ErrInvalidToken
	}
	return p, nil
}

// Age reports how old the payload is relative to now.
func (p Payload) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(p.IssuedAt, 0))
}

func encodePayload(p Payload) ([]byte, error) {
	if len(p.Identifier) > 65535 || len(p.Audience) > 65535 {
		return nil, errors.New("challenge payload field too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(payloadVersion1)
	buf.WriteByte(byte(p.Action))

	if err := binary.Write(&buf, binary.BigEndian, p.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(p.Identifier))); err != nil {
		return nil, err
	}
	buf.WriteString(p.Identifier)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(p.Audience))); err != nil {
		return nil, err
	}
	buf.WriteString(p.Audience)
	buf.Write(p.Nonce[:])

	return buf.Bytes(), nil
}

func decodePayload(data []byte) (Payload, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Payload{}, err
	}
	if version != payloadVersion1 {
		return Payload{}, errors.New("unknown challenge payload version")
	}

	action, err := reader.ReadByte()
	if err != nil {
		return Payload{}, err
	}

	p := Payload{Action: Action(action)}
	if err := binary.Read(reader, binary.BigEndian, &p.IssuedAt); err != nil {
		return Payload{}, err
	}

	var idLen uint16
	if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
		return Payload{}, err
	}
	identifier := make([]byte, idLen)
	if _, err := io.ReadFull(reader, identifier); err != nil {
		return Payload{}, err
	}
	p.Identifier = string(identifier)

	var audLen uint16
	if err := binary.Read(reader, binary.BigEndian, &audLen); err != nil {
		return Payload{}, err
	}
	audience := make([]byte, audLen)
	if _, err := io.ReadFull(reader, audience); err != nil {
		return Payload{}, err
	}
	p.Audience = string(audience)

	if _, err := io.ReadFull(reader, p.Nonce[:]); err != nil {
		return Payload{}, err
	}
	if reader.Len() != 0 {
		return Payload{}, errors.New("trailing bytes in challenge payload")
	}

	return p, nil
}
