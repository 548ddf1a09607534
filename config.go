package storegate

import (
	"errors"
	"time"
)

// Config defines a public type used by storegate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	DeviceLimit DeviceLimitConfig
	OTP         OTPConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
DEVICE LIMIT CONFIG
====================================
*/

// DeviceLimitConfig defines a public type used by storegate APIs.
//
// DeviceLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DeviceLimitConfig struct {
	// DefaultLimit is assigned to an account the first time it is seen by
	// CheckDevice. Raising or lowering a stored limit later is never
	// retroactive against existing bindings.
	DefaultLimit int
	RedisPrefix  string
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by storegate APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	// CodeTTL is the validity window of an issued code. Reissuing inside the
	// window returns the existing code and does NOT reset the window.
	CodeTTL     time.Duration
	RedisPrefix string

	// Fixed-window issuance throttle. Resend stays idempotent inside the
	// window; the throttle only caps raw issuance attempts.
	EnableAccountThrottle bool
	EnableIPThrottle      bool
	MaxIssuesPerWindow    int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by storegate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by storegate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the engine ships with: a device
// limit of 2, a 10 minute code window, audit and metrics disabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		DeviceLimit: DeviceLimitConfig{
			DefaultLimit: 2,
			RedisPrefix:  "sg",
		},
		OTP: OTPConfig{
			CodeTTL:               10 * time.Minute,
			RedisPrefix:           "sgo",
			EnableAccountThrottle: false,
			EnableIPThrottle:      false,
			MaxIssuesPerWindow:    10,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.DeviceLimit.DefaultLimit <= 0 {
		return errors.New("DeviceLimit DefaultLimit must be > 0")
	}
	if c.DeviceLimit.RedisPrefix == "" {
		return errors.New("DeviceLimit RedisPrefix must not be empty")
	}

	if c.OTP.CodeTTL <= 0 {
		return errors.New("OTP CodeTTL must be > 0")
	}
	if c.OTP.RedisPrefix == "" {
		return errors.New("OTP RedisPrefix must not be empty")
	}
	if c.OTP.RedisPrefix == c.DeviceLimit.RedisPrefix {
		return errors.New("OTP RedisPrefix must differ from DeviceLimit RedisPrefix")
	}
	if (c.OTP.EnableAccountThrottle || c.OTP.EnableIPThrottle) && c.OTP.MaxIssuesPerWindow <= 0 {
		return errors.New("OTP MaxIssuesPerWindow must be > 0 when a throttle is enabled")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
