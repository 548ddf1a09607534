package storegate

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

const otpRecordVersionV1 = 1

var (
	errOTPNotFound    = errors.New("otp record not found")
	errOTPExpired     = errors.New("otp record expired")
	errOTPMismatch    = errors.New("otp code mismatch")
	errOTPUnavailable = errors.New("otp store unavailable")
)

// otpRecord is the single live code slot for an account. The account
// identifier is the key, so at most one record exists per account.
type otpRecord struct {
	Code      string
	ExpiresAt int64
}

func (r *otpRecord) expired(now time.Time) bool {
	return now.Unix() > r.ExpiresAt
}

type otpStore struct {
	redis  *redis.Client
	prefix string
}

func newOTPStore(redisClient *redis.Client, prefix string) *otpStore {
	return &otpStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *otpStore) key(accountID string) string {
	return s.prefix + ":" + accountID
}

// Upsert replaces or inserts the account's code record. Last writer wins,
// which is the contract: concurrent issuance must never leave two live codes
// for one account.
func (s *otpStore) Upsert(ctx context.Context, accountID string, record *otpRecord, ttl time.Duration) error {
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(accountID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errOTPUnavailable, err)
	}

	return nil
}

// Peek reads the account's record without consuming it. An expired record is
// deleted on sight and reported as errOTPExpired; the next issuance then
// takes the absent branch.
func (s *otpStore) Peek(ctx context.Context, accountID string) (*otpRecord, error) {
	data, err := s.redis.Get(ctx, s.key(accountID)).Bytes()
	if err == redis.Nil {
		return nil, errOTPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errOTPUnavailable, err)
	}

	record, err := decodeOTPRecord(data)
	if err != nil {
		return nil, err
	}

	if record.expired(time.Now()) {
		if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", errOTPUnavailable, err)
		}
		return nil, errOTPExpired
	}

	return record, nil
}

// Consume runs the single-use check: read, compare, delete — all inside a
// WATCH transaction so the delete is conditioned on the record still being
// the one that was read. Of two concurrent verifies with the correct code,
// exactly one deletes the record; the loser's transaction fails, retries,
// and observes not-found. A mismatched code leaves the record intact so the
// shopper can retry inside the same window.
func (s *otpStore) Consume(ctx context.Context, accountID, submitted string) error {
	const maxRetries = 4
	key := s.key(accountID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeOTPRecord(data)
			if err != nil {
				return err
			}

			if record.expired(time.Now()) {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errOTPExpired
			}

			if subtle.ConstantTimeCompare([]byte(record.Code), []byte(submitted)) != 1 {
				return errOTPMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return errOTPNotFound
			case errors.Is(err, errOTPExpired), errors.Is(err, errOTPMismatch):
				return err
			default:
				return fmt.Errorf("%w: %v", errOTPUnavailable, err)
			}
		}

		return nil
	}

	return errOTPNotFound
}

func encodeOTPRecord(record *otpRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.Code) > 255 {
		return nil, errors.New("otp record code too long")
	}
	buf.WriteByte(byte(len(record.Code)))
	buf.WriteString(record.Code)

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*otpRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	record := &otpRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	codeLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	code := make([]byte, codeLen)
	if _, err := io.ReadFull(reader, code); err != nil {
		return nil, err
	}
	record.Code = string(code)

	return record, nil
}
