package storegate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	errIssueThrottled          = errors.New("issue throttled")
	errIssueLimiterUnavailable = errors.New("issue limiter unavailable")
)

// issueLimiter caps raw code-issuance attempts per account and per client IP
// over a fixed window the length of the code TTL. It never interferes with
// idempotent resend: a throttled caller that already holds a live code simply
// has to use it.
type issueLimiter struct {
	redis  *redis.Client
	config OTPConfig
}

func newIssueLimiter(redisClient *redis.Client, cfg OTPConfig) *issueLimiter {
	return &issueLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *issueLimiter) CheckIssue(ctx context.Context, accountID, ip string) error {
	if l.config.EnableAccountThrottle {
		if err := l.enforceFixedWindow(ctx, l.accountKey(accountID)); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *issueLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errIssueLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.CodeTTL).Err(); err != nil {
			return fmt.Errorf("%w: %v", errIssueLimiterUnavailable, err)
		}
	}

	if count > int64(l.config.MaxIssuesPerWindow) {
		return errIssueThrottled
	}

	return nil
}

func (l *issueLimiter) accountKey(accountID string) string {
	return l.config.RedisPrefix + ":issue:" + accountID
}

func (l *issueLimiter) ipKey(ip string) string {
	return l.config.RedisPrefix + ":issueip:" + ip
}
