package storegate

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// CheckDevice decides whether the (account, device) pair may log in.
//
// A first-seen account is provisioned with the default limit. The first
// `limit` distinct devices of an account are allowed and bound; once the
// fleet is full, already-bound devices keep working (a lowered limit is
// never retroactive) and new devices are denied with a message
// parameterized by the current limit, or the configured block message when
// one is set.
//
// The check-then-bind window is deliberately not atomic; see the package
// documentation for the accepted overshoot under concurrent registration.
func (e *Engine) CheckDevice(ctx context.Context, accountID, deviceID string) (DeviceDecision, error) {
	if e == nil || e.accountStore == nil || e.deviceStore == nil {
		return DeviceDecision{}, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricCheckDeviceLatency, time.Since(start))
		}
	}()

	if accountID == "" || deviceID == "" {
		e.emitAudit(ctx, auditEventDeviceCheckFailure, false, accountID, deviceID, ErrInvalidRequest, func() map[string]string {
			return map[string]string{
				"reason": "missing_identifier",
			}
		})
		return DeviceDecision{}, ErrInvalidRequest
	}

	limit, provisioned, err := e.accountStore.GetOrCreateLimit(ctx, accountID, e.config.DeviceLimit.DefaultLimit)
	if err != nil {
		return DeviceDecision{}, e.deviceCheckStorageFailure(ctx, accountID, deviceID, err)
	}
	if provisioned {
		e.metricInc(MetricAccountProvisioned)
	}

	devices, err := e.deviceStore.Devices(ctx, accountID)
	if err != nil {
		return DeviceDecision{}, e.deviceCheckStorageFailure(ctx, accountID, deviceID, err)
	}

	known := false
	for _, d := range devices {
		if d == deviceID {
			known = true
			break
		}
	}

	if len(devices) < limit {
		if !known {
			if err := e.deviceStore.Bind(ctx, accountID, deviceID); err != nil {
				return DeviceDecision{}, e.deviceCheckStorageFailure(ctx, accountID, deviceID, err)
			}
			e.metricInc(MetricDeviceBound)
			e.emitAudit(ctx, auditEventDeviceBound, true, accountID, deviceID, nil, func() map[string]string {
				return map[string]string{
					"fleet_size": strconv.Itoa(len(devices) + 1),
					"limit":      strconv.Itoa(limit),
				}
			})
		}
		e.metricInc(MetricDeviceAllowed)
		e.emitAudit(ctx, auditEventDeviceAllowed, true, accountID, deviceID, nil, nil)
		return DeviceDecision{Allowed: true, Known: known, Limit: limit}, nil
	}

	if known {
		// A bound device is always honored, even when the fleet is over the
		// current limit.
		e.metricInc(MetricDeviceAllowed)
		e.emitAudit(ctx, auditEventDeviceAllowed, true, accountID, deviceID, nil, nil)
		return DeviceDecision{Allowed: true, Known: true, Limit: limit}, nil
	}

	custom, err := e.accountStore.DenyMessage(ctx)
	if err != nil {
		// The block message is cosmetic; a registry hiccup here must not turn
		// a clean denial into a 500. Audit it and fall back to the default.
		custom = ""
		e.emitAudit(ctx, auditEventDeviceCheckFailure, false, accountID, deviceID, ErrStorageUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "deny_message_read_failed",
			}
		})
	}

	e.metricInc(MetricDeviceDenied)
	e.emitAudit(ctx, auditEventDeviceDenied, false, accountID, deviceID, nil, func() map[string]string {
		return map[string]string{
			"fleet_size": strconv.Itoa(len(devices)),
			"limit":      strconv.Itoa(limit),
		}
	})
	return DeviceDecision{
		Allowed: false,
		Known:   false,
		Limit:   limit,
		Message: denialMessage(custom, limit),
	}, nil
}

// SetDeviceLimit is the settings-collaborator write path for a single
// account's limit. Existing bindings above a lowered limit keep working.
func (e *Engine) SetDeviceLimit(ctx context.Context, accountID string, limit int) error {
	if e == nil || e.accountStore == nil {
		return ErrEngineNotReady
	}
	if accountID == "" {
		return ErrInvalidRequest
	}

	if err := e.accountStore.SetLimit(ctx, accountID, limit); err != nil {
		if errors.Is(err, ErrInvalidLimit) {
			e.emitAudit(ctx, auditEventLimitConfigured, false, accountID, "", ErrInvalidLimit, nil)
			return ErrInvalidLimit
		}
		e.metricInc(MetricStorageFailure)
		e.emitAudit(ctx, auditEventLimitConfigured, false, accountID, "", ErrStorageUnavailable, nil)
		return ErrStorageUnavailable
	}

	e.emitAudit(ctx, auditEventLimitConfigured, true, accountID, "", nil, func() map[string]string {
		return map[string]string{
			"limit": strconv.Itoa(limit),
		}
	})
	return nil
}

// SetDenyMessage stores the free-text block message shown on denial. An
// empty message restores the limit-parameterized default.
func (e *Engine) SetDenyMessage(ctx context.Context, message string) error {
	if e == nil || e.accountStore == nil {
		return ErrEngineNotReady
	}

	if err := e.accountStore.SetDenyMessage(ctx, message); err != nil {
		e.metricInc(MetricStorageFailure)
		e.emitAudit(ctx, auditEventDenyMessageSet, false, "", "", ErrStorageUnavailable, nil)
		return ErrStorageUnavailable
	}

	e.emitAudit(ctx, auditEventDenyMessageSet, true, "", "", nil, nil)
	return nil
}

func (e *Engine) deviceCheckStorageFailure(ctx context.Context, accountID, deviceID string, err error) error {
	e.metricInc(MetricStorageFailure)
	e.emitAudit(ctx, auditEventDeviceCheckFailure, false, accountID, deviceID, ErrStorageUnavailable, func() map[string]string {
		return map[string]string{
			"cause": err.Error(),
		}
	})
	return ErrStorageUnavailable
}
