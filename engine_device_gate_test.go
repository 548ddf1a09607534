package storegate

import (
	"context"
	"errors"
	"testing"
)

func newGateEngine(t *testing.T) *Engine {
	t.Helper()

	_, rdb := newTestRedis(t)
	return newTestEngine(t, rdb, defaultConfig(), &fakeSender{}, &fakeMutator{})
}

func mustCheck(t *testing.T, engine *Engine, accountID, deviceID string) DeviceDecision {
	t.Helper()

	decision, err := engine.CheckDevice(context.Background(), accountID, deviceID)
	if err != nil {
		t.Fatalf("CheckDevice(%q, %q) failed: %v", accountID, deviceID, err)
	}
	return decision
}

func TestCheckDeviceFirstDevicesAllowedThenDenied(t *testing.T) {
	engine := newGateEngine(t)

	if d := mustCheck(t, engine, "A1", "D1"); !d.Allowed {
		t.Fatalf("expected first device allowed, got %+v", d)
	}
	if d := mustCheck(t, engine, "A1", "D2"); !d.Allowed {
		t.Fatalf("expected second device allowed, got %+v", d)
	}

	d := mustCheck(t, engine, "A1", "D3")
	if d.Allowed {
		t.Fatal("expected third distinct device denied")
	}
	if d.Limit != 2 {
		t.Fatalf("expected limit 2 in decision, got %d", d.Limit)
	}
	if d.Message == "" {
		t.Fatal("expected denial message")
	}

	// A bound device keeps working after the fleet is full.
	if d := mustCheck(t, engine, "A1", "D1"); !d.Allowed || !d.Known {
		t.Fatalf("expected known device allowed, got %+v", d)
	}
}

func TestCheckDeviceRepeatIsIdempotent(t *testing.T) {
	engine := newGateEngine(t)

	for i := 0; i < 3; i++ {
		if d := mustCheck(t, engine, "A1", "D1"); !d.Allowed {
			t.Fatalf("attempt %d: expected allowed, got %+v", i, d)
		}
	}

	devices, err := engine.deviceStore.Devices(context.Background(), "A1")
	if err != nil {
		t.Fatalf("Devices failed: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected exactly one binding, got %v", devices)
	}
}

func TestCheckDeviceProvisionsAccountOnce(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, defaultConfig(), &fakeSender{}, &fakeMutator{})
	ctx := context.Background()

	mustCheck(t, engine, "A1", "D1")
	mustCheck(t, engine, "A1", "D2")

	limit, provisioned, err := engine.accountStore.GetOrCreateLimit(ctx, "A1", 99)
	if err != nil {
		t.Fatalf("GetOrCreateLimit failed: %v", err)
	}
	if provisioned {
		t.Fatal("expected account to already exist")
	}
	if limit != 2 {
		t.Fatalf("expected stored default limit 2, got %d", limit)
	}
}

func TestCheckDeviceLoweredLimitIsNotRetroactive(t *testing.T) {
	engine := newGateEngine(t)
	ctx := context.Background()

	mustCheck(t, engine, "A1", "D1")
	mustCheck(t, engine, "A1", "D2")

	if err := engine.SetDeviceLimit(ctx, "A1", 1); err != nil {
		t.Fatalf("SetDeviceLimit failed: %v", err)
	}

	// Both existing bindings stay honored; a new device is denied against
	// the lowered limit.
	if d := mustCheck(t, engine, "A1", "D1"); !d.Allowed {
		t.Fatalf("expected bound device allowed after limit lowered, got %+v", d)
	}
	if d := mustCheck(t, engine, "A1", "D2"); !d.Allowed {
		t.Fatalf("expected bound device allowed after limit lowered, got %+v", d)
	}
	d := mustCheck(t, engine, "A1", "D3")
	if d.Allowed {
		t.Fatal("expected new device denied after limit lowered")
	}
	if d.Limit != 1 {
		t.Fatalf("expected limit 1 in decision, got %d", d.Limit)
	}
}

func TestCheckDeviceRaisedLimitOpensSlots(t *testing.T) {
	engine := newGateEngine(t)
	ctx := context.Background()

	mustCheck(t, engine, "A1", "D1")
	mustCheck(t, engine, "A1", "D2")
	if d := mustCheck(t, engine, "A1", "D3"); d.Allowed {
		t.Fatal("expected third device denied at limit 2")
	}

	if err := engine.SetDeviceLimit(ctx, "A1", 3); err != nil {
		t.Fatalf("SetDeviceLimit failed: %v", err)
	}

	if d := mustCheck(t, engine, "A1", "D3"); !d.Allowed {
		t.Fatalf("expected third device allowed at limit 3, got %+v", d)
	}
	if d := mustCheck(t, engine, "A1", "D4"); d.Allowed {
		t.Fatal("expected fourth device denied at limit 3")
	}
}

func TestCheckDeviceMissingIdentifiers(t *testing.T) {
	engine := newGateEngine(t)
	ctx := context.Background()

	if _, err := engine.CheckDevice(ctx, "", "D1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty account, got %v", err)
	}
	if _, err := engine.CheckDevice(ctx, "A1", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty device, got %v", err)
	}

	// Rejected before touching storage: no account was provisioned.
	_, provisioned, err := engine.accountStore.GetOrCreateLimit(ctx, "A1", 2)
	if err != nil {
		t.Fatalf("GetOrCreateLimit failed: %v", err)
	}
	if !provisioned {
		t.Fatal("expected account to be unseen after rejected checks")
	}
}

func TestCheckDeviceAccountsAreIsolated(t *testing.T) {
	engine := newGateEngine(t)

	mustCheck(t, engine, "A1", "D1")
	mustCheck(t, engine, "A1", "D2")

	// A second account gets its own fleet.
	if d := mustCheck(t, engine, "A2", "D1"); !d.Allowed {
		t.Fatalf("expected fresh account device allowed, got %+v", d)
	}
	if d := mustCheck(t, engine, "A2", "D9"); !d.Allowed {
		t.Fatalf("expected fresh account second device allowed, got %+v", d)
	}
	if d := mustCheck(t, engine, "A2", "D10"); d.Allowed {
		t.Fatal("expected fresh account third device denied")
	}
}

func TestCheckDeviceCustomDenyMessage(t *testing.T) {
	engine := newGateEngine(t)
	ctx := context.Background()

	mustCheck(t, engine, "A1", "D1")
	mustCheck(t, engine, "A1", "D2")

	if err := engine.SetDenyMessage(ctx, "contact support to register a new device"); err != nil {
		t.Fatalf("SetDenyMessage failed: %v", err)
	}

	d := mustCheck(t, engine, "A1", "D3")
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if d.Message != "contact support to register a new device" {
		t.Fatalf("expected custom deny message, got %q", d.Message)
	}

	// Clearing the override restores the limit-parameterized default.
	if err := engine.SetDenyMessage(ctx, ""); err != nil {
		t.Fatalf("SetDenyMessage clear failed: %v", err)
	}
	d = mustCheck(t, engine, "A1", "D3")
	if d.Message != denialMessage("", 2) {
		t.Fatalf("expected default deny message, got %q", d.Message)
	}
}

func TestSetDeviceLimitRejectsNonPositive(t *testing.T) {
	engine := newGateEngine(t)
	ctx := context.Background()

	if err := engine.SetDeviceLimit(ctx, "A1", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if err := engine.SetDeviceLimit(ctx, "A1", -3); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if err := engine.SetDeviceLimit(ctx, "", 2); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty account, got %v", err)
	}
}

func TestCheckDeviceStorageFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, defaultConfig(), &fakeSender{}, &fakeMutator{})

	mr.Close()

	if _, err := engine.CheckDevice(context.Background(), "A1", "D1"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
