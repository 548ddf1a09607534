package storegate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestOTPStore(t *testing.T) *otpStore {
	t.Helper()

	_, rdb := newTestRedis(t)
	return newOTPStore(rdb, "sgo")
}

func liveRecord(code string) *otpRecord {
	return &otpRecord{
		Code:      code,
		ExpiresAt: time.Now().Add(10 * time.Minute).Unix(),
	}
}

func TestOTPStoreUpsertReplaces(t *testing.T) {
	store := newTestOTPStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "U1", liveRecord("111111"), 10*time.Minute); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, "U1", liveRecord("222222"), 10*time.Minute); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	record, err := store.Peek(ctx, "U1")
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if record.Code != "222222" {
		t.Fatalf("expected last writer to win, got %q", record.Code)
	}
}

func TestOTPStorePeekAbsent(t *testing.T) {
	store := newTestOTPStore(t)

	if _, err := store.Peek(context.Background(), "U1"); !errors.Is(err, errOTPNotFound) {
		t.Fatalf("expected errOTPNotFound, got %v", err)
	}
}

func TestOTPStorePeekDeletesExpired(t *testing.T) {
	store := newTestOTPStore(t)
	ctx := context.Background()

	expired := &otpRecord{Code: "333333", ExpiresAt: time.Now().Add(-time.Second).Unix()}
	if err := store.Upsert(ctx, "U1", expired, time.Hour); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if _, err := store.Peek(ctx, "U1"); !errors.Is(err, errOTPExpired) {
		t.Fatalf("expected errOTPExpired, got %v", err)
	}
	// Lazy expiry: the record is gone on the next read.
	if _, err := store.Peek(ctx, "U1"); !errors.Is(err, errOTPNotFound) {
		t.Fatalf("expected errOTPNotFound after lazy expiry, got %v", err)
	}
}

func TestOTPStoreConsumeMismatchKeepsRecord(t *testing.T) {
	store := newTestOTPStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "U1", liveRecord("444444"), 10*time.Minute); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := store.Consume(ctx, "U1", "999999"); !errors.Is(err, errOTPMismatch) {
		t.Fatalf("expected errOTPMismatch, got %v", err)
	}
	if err := store.Consume(ctx, "U1", "444444"); err != nil {
		t.Fatalf("expected match after miss, got %v", err)
	}
}

func TestOTPStoreConsumeIsSingleUse(t *testing.T) {
	store := newTestOTPStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "U1", liveRecord("555555"), 10*time.Minute); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := store.Consume(ctx, "U1", "555555"); err != nil {
		t.Fatalf("first consume failed: %v", err)
	}
	if err := store.Consume(ctx, "U1", "555555"); !errors.Is(err, errOTPNotFound) {
		t.Fatalf("expected errOTPNotFound on replay, got %v", err)
	}
}

func TestOTPStoreConcurrentConsumeSingleWinner(t *testing.T) {
	store := newTestOTPStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, "U1", liveRecord("666666"), 10*time.Minute); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.Consume(ctx, "U1", "666666")
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, errOTPNotFound):
		default:
			t.Fatalf("racer %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestOTPRecordCodecRoundTrip(t *testing.T) {
	record := &otpRecord{Code: "718293", ExpiresAt: time.Now().Add(10 * time.Minute).Unix()}

	encoded, err := encodeOTPRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := decodeOTPRecord(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Code != record.Code || decoded.ExpiresAt != record.ExpiresAt {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, record)
	}
}

func TestOTPRecordCodecRejectsUnknownVersion(t *testing.T) {
	record := &otpRecord{Code: "718293", ExpiresAt: time.Now().Unix()}
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	encoded[0] = 99
	if _, err := decodeOTPRecord(encoded); err == nil {
		t.Fatal("expected decode failure for unknown version")
	}
}
