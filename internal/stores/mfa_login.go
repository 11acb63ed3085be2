package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const mfaTicketRecordVersion1 = 1

var (
	ErrMFATicketNotFound     = errors.New("mfa ticket not found")
	ErrMFATicketExpired      = errors.New("mfa ticket expired")
	ErrMFATicketExceeded     = errors.New("mfa ticket attempts exceeded")
	ErrMFATicketMismatch     = errors.New("mfa ticket secret mismatch")
	ErrMFARedisUnavailable   = errors.New("mfa redis unavailable")
	errMFATicketBadRecord    = errors.New("invalid mfa ticket record")
	errMFATicketFieldTooLong = errors.New("mfa ticket field too long")
)

// MFATicket is the server side of a pending multi-factor login: the password
// step succeeded, and the session is only issued once a valid code arrives
// carrying this ticket. SecretHash binds the follow-up request to the opaque
// handle returned by the password step.
type MFATicket struct {
	Username   string
	Audience   string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

// MFATicketStore persists pending MFA logins as versioned binary records
// with a TTL. Attempt accounting uses WATCH/MULTI optimistic transactions.
type MFATicketStore struct {
	redis redis.UniversalClient
}

func NewMFATicketStore(redisClient redis.UniversalClient) *MFATicketStore {
	return &MFATicketStore{redis: redisClient}
}

func (s *MFATicketStore) key(ticketID string) string {
	return "imf:" + ticketID
}

func (s *MFATicketStore) Save(ctx context.Context, ticketID string, ticket *MFATicket, ttl time.Duration) error {
	encoded, err := encodeMFATicket(ticket)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(ticketID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMFARedisUnavailable, err)
	}
	return nil
}

// Get loads a pending ticket and verifies the caller-supplied secret hash in
// constant time. Expired records are dropped eagerly.
func (s *MFATicketStore) Get(ctx context.Context, ticketID string, providedHash [32]byte) (*MFATicket, error) {
	data, err := s.redis.Get(ctx, s.key(ticketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMFATicketNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrMFARedisUnavailable, err)
	}

	ticket, err := decodeMFATicket(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > ticket.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(ticketID)).Result()
		return nil, ErrMFATicketExpired
	}
	if subtle.ConstantTimeCompare(ticket.SecretHash[:], providedHash[:]) != 1 {
		return nil, ErrMFATicketMismatch
	}
	return ticket, nil
}

// Delete removes a ticket after a successful confirmation.
func (s *MFATicketStore) Delete(ctx context.Context, ticketID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(ticketID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMFARedisUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter under WATCH so concurrent wrong
// codes cannot both read a pre-limit count. Reaching maxAttempts deletes the
// ticket and reports exceeded=true; the password step must be repeated.
func (s *MFATicketStore) RecordFailure(ctx context.Context, ticketID string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(ticketID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			ticket, err := decodeMFATicket(data)
			if err != nil {
				return err
			}

			ttl := time.Until(time.Unix(ticket.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrMFATicketExpired
			}

			ticket.Attempts++
			if int(ticket.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			updated, err := encodeMFATicket(ticket)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrMFATicketNotFound
			}
			if errors.Is(err, ErrMFATicketExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrMFARedisUnavailable, err)
		}
		return exceeded, nil
	}

	return false, ErrMFATicketNotFound
}

func encodeMFATicket(ticket *MFATicket) ([]byte, error) {
	if len(ticket.Username) > 65535 || len(ticket.Audience) > 65535 {
		return nil, errMFATicketFieldTooLong
	}

	var buf bytes.Buffer
	buf.WriteByte(mfaTicketRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, ticket.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, ticket.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(ticket.Username))); err != nil {
		return nil, err
	}
	buf.WriteString(ticket.Username)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(ticket.Audience))); err != nil {
		return nil, err
	}
	buf.WriteString(ticket.Audience)
	buf.Write(ticket.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeMFATicket(data []byte) (*MFATicket, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errMFATicketBadRecord
	}
	if version != mfaTicketRecordVersion1 {
		return nil, errMFATicketBadRecord
	}

	ticket := &MFATicket{}
	if err := binary.Read(reader, binary.BigEndian, &ticket.Attempts); err != nil {
		return nil, errMFATicketBadRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &ticket.ExpiresAt); err != nil {
		return nil, errMFATicketBadRecord
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, errMFATicketBadRecord
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, errMFATicketBadRecord
	}
	ticket.Username = string(user)

	var audLen uint16
	if err := binary.Read(reader, binary.BigEndian, &audLen); err != nil {
		return nil, errMFATicketBadRecord
	}
	aud := make([]byte, audLen)
	if _, err := io.ReadFull(reader, aud); err != nil {
		return nil, errMFATicketBadRecord
	}
	ticket.Audience = string(aud)

	if _, err := io.ReadFull(reader, ticket.SecretHash[:]); err != nil {
		return nil, errMFATicketBadRecord
	}

	return ticket, nil
}
