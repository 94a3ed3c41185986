package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type otpClock struct{ t time.Time }

func (c *otpClock) Now() time.Time { return c.t }

func digestOf(code string) [32]byte {
	var d [32]byte
	copy(d[:], code)
	return d
}

func TestOTPScenarioSingleUseAndExpiry(t *testing.T) {
	_, rdb := newTestRedis(t)
	issuedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := &otpClock{t: issuedAt}
	store := NewOTPStore(rdb, "test", clock.Now)
	ctx := context.Background()

	err := store.Issue(ctx, &OTPRecord{
		PrincipalID: "p1",
		Purpose:     PurposePasswordReset,
		Digest:      digestOf("482913"),
		ExpiresAt:   issuedAt.Add(15 * time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = issuedAt.Add(5 * time.Minute)
	if _, err := store.Consume(ctx, PurposePasswordReset, "p1", digestOf("000000"), 5); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected mismatch for wrong code, got %v", err)
	}
	rec, err := store.Get(ctx, PurposePasswordReset, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Used || rec.Attempts != 1 {
		t.Fatalf("wrong code must not consume: %+v", rec)
	}

	rec, err = store.Consume(ctx, PurposePasswordReset, "p1", digestOf("482913"), 5)
	if err != nil {
		t.Fatalf("expected correct code to verify, got %v", err)
	}
	if !rec.Used || rec.PrincipalID != "p1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := store.Consume(ctx, PurposePasswordReset, "p1", digestOf("482913"), 5); !errors.Is(err, ErrOTPUsed) {
		t.Fatalf("expected replay to fail with ErrOTPUsed, got %v", err)
	}
}

func TestOTPExpiredRegardlessOfCode(t *testing.T) {
	_, rdb := newTestRedis(t)
	issuedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := &otpClock{t: issuedAt}
	store := NewOTPStore(rdb, "test", clock.Now)
	ctx := context.Background()

	if err := store.Issue(ctx, &OTPRecord{
		PrincipalID: "p1",
		Purpose:     PurposePasswordReset,
		Digest:      digestOf("482913"),
		ExpiresAt:   issuedAt.Add(15 * time.Minute).Unix(),
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = issuedAt.Add(20 * time.Minute)
	if _, err := store.Consume(ctx, PurposePasswordReset, "p1", digestOf("482913"), 5); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if _, err := store.Consume(ctx, PurposePasswordReset, "p1", digestOf("482913"), 5); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expired record should be gone, got %v", err)
	}
}

func TestOTPReissueReplacesPriorCode(t *testing.T) {
	_, rdb := newTestRedis(t)
	now := time.Now()
	store := NewOTPStore(rdb, "test", func() time.Time { return now })
	ctx := context.Background()

	for _, code := range []string{"111111", "222222"} {
		if err := store.Issue(ctx, &OTPRecord{
			PrincipalID: "p1",
			Purpose:     PurposeEmailVerify,
			Digest:      digestOf(code),
			ExpiresAt:   now.Add(15 * time.Minute).Unix(),
		}); err != nil {
			t.Fatalf("issue %s: %v", code, err)
		}
	}
	if _, err := store.Consume(ctx, PurposeEmailVerify, "p1", digestOf("111111"), 5); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("prior code must be invalidated, got %v", err)
	}
	if _, err := store.Consume(ctx, PurposeEmailVerify, "p1", digestOf("222222"), 5); err != nil {
		t.Fatalf("latest code must verify, got %v", err)
	}
	if _, err := store.Consume(ctx, PurposePasswordReset, "p1", digestOf("222222"), 5); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("codes are scoped by purpose, got %v", err)
	}
}

func TestOTPAttemptLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	now := time.Now()
	store := NewOTPStore(rdb, "test", func() time.Time { return now })
	ctx := context.Background()

	if err := store.Issue(ctx, &OTPRecord{
		PrincipalID: "p1",
		Purpose:     PurposeEmailVerify,
		Digest:      digestOf("123456"),
		ExpiresAt:   now.Add(15 * time.Minute).Unix(),
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := store.Consume(ctx, PurposeEmailVerify, "p1", digestOf("000000"), 3); !errors.Is(err, ErrOTPMismatch) {
			t.Fatalf("attempt %d: expected mismatch, got %v", i+1, err)
		}
	}
	if _, err := store.Consume(ctx, PurposeEmailVerify, "p1", digestOf("000000"), 3); !errors.Is(err, ErrOTPAttemptsExceeded) {
		t.Fatalf("expected attempts exceeded, got %v", err)
	}
	if _, err := store.Consume(ctx, PurposeEmailVerify, "p1", digestOf("123456"), 3); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("exhausted code must be gone, got %v", err)
	}
}

func TestOTPDeleteAndUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	now := time.Now()
	store := NewOTPStore(rdb, "test", func() time.Time { return now })
	ctx := context.Background()

	if err := store.Delete(ctx, PurposePasswordReset, "nobody"); err != nil {
		t.Fatalf("deleting a missing record: %v", err)
	}
	mr.Close()
	if _, err := store.Get(ctx, PurposePasswordReset, "p1"); !errors.Is(err, ErrOTPRedisUnavailable) {
		t.Fatalf("expected ErrOTPRedisUnavailable, got %v", err)
	}
}

func TestOTPRecordEncodingRejectsGarbage(t *testing.T) {
	if _, err := decodeOTPRecord([]byte{9, 1, 0}); err == nil {
		t.Fatal("expected unknown version to be rejected")
	}
	rec := &OTPRecord{PrincipalID: "p1", Purpose: PurposeEmailVerify, ExpiresAt: 42, Used: true, Attempts: 3}
	enc, err := encodeOTPRecord(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := decodeOTPRecord(enc[:len(enc)-1]); err == nil {
		t.Fatal("expected truncated record to be rejected")
	}
}

func TestParsePurpose(t *testing.T) {
	for _, p := range []Purpose{PurposeEmailVerify, PurposePasswordReset} {
		got, ok := ParsePurpose(p.String())
		if !ok || got != p {
			t.Fatalf("ParsePurpose(%q) = %v, %v", p.String(), got, ok)
		}
	}
	if _, ok := ParsePurpose("unknown"); ok {
		t.Fatal("expected unknown purpose to be rejected")
	}
}
