package storegate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var errLedgerUnavailable = errors.New("device ledger unavailable")

type deviceStore struct {
	redis  *redis.Client
	prefix string
}

func newDeviceStore(redisClient *redis.Client, prefix string) *deviceStore {
	return &deviceStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *deviceStore) key(accountID string) string {
	return s.prefix + ":devices:" + accountID
}

// Devices returns every device identifier bound to the account. Order is
// not meaningful.
func (s *deviceStore) Devices(ctx context.Context, accountID string) ([]string, error) {
	devices, err := s.redis.SMembers(ctx, s.key(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errLedgerUnavailable, err)
	}
	return devices, nil
}

// Bind records the (account, device) pair. Binding an already-bound device
// is a no-op; SADD gives the idempotence for free.
func (s *deviceStore) Bind(ctx context.Context, accountID, deviceID string) error {
	if err := s.redis.SAdd(ctx, s.key(accountID), deviceID).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLedgerUnavailable, err)
	}
	return nil
}
