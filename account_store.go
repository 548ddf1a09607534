package storegate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var errRegistryUnavailable = errors.New("account registry unavailable")

type accountStore struct {
	redis  *redis.Client
	prefix string
}

func newAccountStore(redisClient *redis.Client, prefix string) *accountStore {
	return &accountStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *accountStore) limitKey(accountID string) string {
	return s.prefix + ":limit:" + accountID
}

func (s *accountStore) denyMessageKey() string {
	return s.prefix + ":deny_message"
}

// GetOrCreateLimit returns the account's configured device limit, inserting
// defaultLimit for a first-seen account. The insert is a SETNX, so a stored
// limit is never overwritten even under concurrent first sightings of the
// same account; all racers read the winner's value back. The bool reports
// whether the account was provisioned by this call.
func (s *accountStore) GetOrCreateLimit(ctx context.Context, accountID string, defaultLimit int) (int, bool, error) {
	key := s.limitKey(accountID)

	// The retry covers the narrow window where external reset tooling deletes
	// the key between our SETNX and GET.
	for i := 0; i < 2; i++ {
		created, err := s.redis.SetNX(ctx, key, defaultLimit, 0).Result()
		if err != nil {
			return 0, false, fmt.Errorf("%w: %v", errRegistryUnavailable, err)
		}
		if created {
			return defaultLimit, true, nil
		}

		raw, err := s.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return 0, false, fmt.Errorf("%w: %v", errRegistryUnavailable, err)
		}

		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit <= 0 {
			return 0, false, fmt.Errorf("%w: corrupt limit for account: %q", errRegistryUnavailable, raw)
		}
		return limit, false, nil
	}

	return defaultLimit, true, nil
}

// SetLimit is the settings-collaborator write path. It overwrites the stored
// limit unconditionally; existing bindings above the new limit keep working.
func (s *accountStore) SetLimit(ctx context.Context, accountID string, limit int) error {
	if limit <= 0 {
		return ErrInvalidLimit
	}
	if err := s.redis.Set(ctx, s.limitKey(accountID), limit, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRegistryUnavailable, err)
	}
	return nil
}

// DenyMessage returns the configured free-text block message, or "" when none
// is set. The message lives under a companion key independent of any
// account's limit.
func (s *accountStore) DenyMessage(ctx context.Context) (string, error) {
	msg, err := s.redis.Get(ctx, s.denyMessageKey()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errRegistryUnavailable, err)
	}
	return msg, nil
}

// SetDenyMessage stores the block message shown on denial. An empty message
// clears the override and restores the limit-parameterized default.
func (s *accountStore) SetDenyMessage(ctx context.Context, message string) error {
	var err error
	if message == "" {
		err = s.redis.Del(ctx, s.denyMessageKey()).Err()
	} else {
		err = s.redis.Set(ctx, s.denyMessageKey(), message, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errRegistryUnavailable, err)
	}
	return nil
}
