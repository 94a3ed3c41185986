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

const (
	otpRecordVersionV1 = 1

	// usedRetention keeps a consumed record around after expiry so a late
	// replay still sees used=true rather than a missing key.
	usedRetention = time.Minute
)

var (
	ErrOTPNotFound         = errors.New("otp record not found")
	ErrOTPExpired          = errors.New("otp expired")
	ErrOTPUsed             = errors.New("otp already used")
	ErrOTPMismatch         = errors.New("otp mismatch")
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrOTPRedisUnavailable = errors.New("otp redis unavailable")
)

// Purpose scopes a one-time code. A principal holds at most one outstanding
// code per purpose.
type Purpose uint8

const (
	PurposeEmailVerify   Purpose = 1
	PurposePasswordReset Purpose = 2
)

func (p Purpose) String() string {
	switch p {
	case PurposeEmailVerify:
		return "email_verify"
	case PurposePasswordReset:
		return "password_reset"
	default:
		return "unknown"
	}
}

// ParsePurpose is the inverse of Purpose.String.
func ParsePurpose(s string) (Purpose, bool) {
	switch s {
	case "email_verify":
		return PurposeEmailVerify, true
	case "password_reset":
		return PurposePasswordReset, true
	}
	return 0, false
}

// OTPRecord is the persisted state of a one-time code. The code itself is
// never stored, only its digest.
type OTPRecord struct {
	PrincipalID string
	Purpose     Purpose
	Digest      [32]byte
	ExpiresAt   int64
	Used        bool
	Attempts    uint16
}

// OTPStore keeps one-time code records in Redis.
type OTPStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewOTPStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *OTPStore {
	if prefix == "" {
		prefix = "aotp"
	}
	if now == nil {
		now = time.Now
	}
	return &OTPStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *OTPStore) key(purpose Purpose, principalID string) string {
	return s.prefix + ":" + purpose.String() + ":" + principalID
}

// Issue stores record, replacing any outstanding code for the same
// principal and purpose.
func (s *OTPStore) Issue(ctx context.Context, record *OTPRecord) error {
	if record.PrincipalID == "" {
		return errors.New("otp record principal id is required")
	}
	record.Used = false
	record.Attempts = 0

	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}
	ttl := s.retention(record)
	if ttl <= 0 {
		return errors.New("otp record already expired")
	}
	if err := s.redis.Set(ctx, s.key(record.Purpose, record.PrincipalID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

// Consume checks providedDigest against the outstanding code. A match flips
// Used and returns the record; a mismatch counts an attempt and leaves the
// code valid until maxAttempts is reached. maxAttempts <= 0 disables the
// attempt limit.
func (s *OTPStore) Consume(
	ctx context.Context,
	purpose Purpose,
	principalID string,
	providedDigest [32]byte,
	maxAttempts int,
) (*OTPRecord, error) {
	const maxRetries = 4
	key := s.key(purpose, principalID)

	for i := 0; i < maxRetries; i++ {
		var matched *OTPRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeOTPRecord(data)
			if err != nil {
				return err
			}

			if record.Used {
				return ErrOTPUsed
			}
			if s.now().Unix() > record.ExpiresAt {
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				}); err != nil {
					return err
				}
				return ErrOTPExpired
			}

			if subtle.ConstantTimeCompare(record.Digest[:], providedDigest[:]) != 1 {
				record.Attempts++
				if maxAttempts > 0 && int(record.Attempts) >= maxAttempts {
					if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					}); err != nil {
						return err
					}
					return ErrOTPAttemptsExceeded
				}
				if err := s.rewrite(ctx, tx, key, record); err != nil {
					return err
				}
				return ErrOTPMismatch
			}

			record.Used = true
			if err := s.rewrite(ctx, tx, key, record); err != nil {
				return err
			}
			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrOTPNotFound
			case errors.Is(err, ErrOTPExpired), errors.Is(err, ErrOTPUsed),
				errors.Is(err, ErrOTPMismatch), errors.Is(err, ErrOTPAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
			}
		}
		return matched, nil
	}

	return nil, ErrOTPNotFound
}

// Get returns the current record, including consumed ones.
func (s *OTPStore) Get(ctx context.Context, purpose Purpose, principalID string) (*OTPRecord, error) {
	data, err := s.redis.Get(ctx, s.key(purpose, principalID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return decodeOTPRecord(data)
}

// Delete removes the outstanding code for principal and purpose. Missing
// records are not an error.
func (s *OTPStore) Delete(ctx context.Context, purpose Purpose, principalID string) error {
	if err := s.redis.Del(ctx, s.key(purpose, principalID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}
	return nil
}

func (s *OTPStore) rewrite(ctx context.Context, tx *redis.Tx, key string, record *OTPRecord) error {
	updated, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}
	ttl := s.retention(record)
	if ttl <= 0 {
		ttl = usedRetention
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, updated, ttl)
		return nil
	})
	return err
}

func (s *OTPStore) retention(record *OTPRecord) time.Duration {
	return time.Unix(record.ExpiresAt, 0).Sub(s.now()) + usedRetention
}

func encodeOTPRecord(record *OTPRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	buf.WriteByte(byte(record.Purpose))
	if record.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.PrincipalID) > 65535 {
		return nil, errors.New("otp record principal id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.PrincipalID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.PrincipalID)
	buf.Write(record.Digest[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*OTPRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	used, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	record := &OTPRecord{Purpose: Purpose(purpose), Used: used == 1}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var idLen uint16
	if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
		return nil, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, err
	}
	record.PrincipalID = string(id)

	if _, err := io.ReadFull(reader, record.Digest[:]); err != nil {
		return nil, err
	}
	return record, nil
}
