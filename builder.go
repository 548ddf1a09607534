package storegate

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/kaelgrist/storegate/mailer"
	"github.com/kaelgrist/storegate/tags"
)

// Builder defines a public type used by storegate APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	sender     mailer.Sender
	tagMutator tags.Mutator
	auditSink  AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCodeSender describes the withcodesender operation and its observable behavior.
func (b *Builder) WithCodeSender(sender mailer.Sender) *Builder {
	b.sender = sender
	return b
}

// WithTagMutator describes the withtagmutator operation and its observable behavior.
func (b *Builder) WithTagMutator(m tags.Mutator) *Builder {
	b.tagMutator = m
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	if b.sender == nil {
		b.sender = mailer.NewLogSender(nil)
	}
	if b.tagMutator == nil {
		b.tagMutator = tags.NoOpMutator{}
	}

	engine := &Engine{
		config:       b.config,
		accountStore: newAccountStore(b.redis, b.config.DeviceLimit.RedisPrefix),
		deviceStore:  newDeviceStore(b.redis, b.config.DeviceLimit.RedisPrefix),
		otpStore:     newOTPStore(b.redis, b.config.OTP.RedisPrefix),
		issueLimiter: newIssueLimiter(b.redis, b.config.OTP),
		audit:        newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:      NewMetrics(b.config.Metrics),
		sender:       b.sender,
		tagMutator:   b.tagMutator,
	}

	b.built = true
	return engine, nil
}
