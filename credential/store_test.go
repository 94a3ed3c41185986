package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var day0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newRow(id, principal string, kind jwt.Kind, issued time.Time, ttl time.Duration) *Credential {
	return &Credential{
		ID:          id,
		PrincipalID: principal,
		Kind:        kind,
		ValueDigest: Digest("signed-" + id),
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(ttl),
	}
}

type storeFactory func(t *testing.T, clock *testClock) Store

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, factory storeFactory) {
	t.Run("CreateFindActive", func(t *testing.T) {
		clock := &testClock{t: day0}
		s := factory(t, clock)
		ctx := context.Background()

		row := newRow("c1", "p1", jwt.KindRefresh, day0, time.Hour)
		if err := s.Create(ctx, row); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := FindActiveRefresh(ctx, s, "p1", "c1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.ID != "c1" || got.PrincipalID != "p1" || got.Kind != jwt.KindRefresh {
			t.Fatalf("unexpected row: %+v", got)
		}
		if !got.MatchesValue("signed-c1") || got.MatchesValue("signed-c2") {
			t.Fatal("digest comparison mismatch")
		}
		if got.ExpiresAt.Unix() != row.ExpiresAt.Unix() || got.IssuedAt.Unix() != row.IssuedAt.Unix() {
			t.Fatalf("timestamps not preserved: %+v", got)
		}
	})

	t.Run("FindActiveFiltersServerSide", func(t *testing.T) {
		clock := &testClock{t: day0}
		s := factory(t, clock)
		ctx := context.Background()

		if err := s.Create(ctx, newRow("c1", "p1", jwt.KindRefresh, day0, time.Hour)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := FindActiveRefresh(ctx, s, "p2", "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected other principal to miss, got %v", err)
		}
		if _, err := s.FindActive(ctx, jwt.KindPasswordReset, "p1", "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected other kind to miss, got %v", err)
		}
		if _, err := FindActiveRefresh(ctx, s, "p1", "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected unknown id to miss, got %v", err)
		}

		clock.Set(day0.Add(time.Hour))
		if _, err := FindActiveRefresh(ctx, s, "p1", "c1"); err != nil {
			t.Fatalf("expected row active at exactly expiry, got %v", err)
		}
		clock.Set(day0.Add(time.Hour + time.Second))
		if _, err := FindActiveRefresh(ctx, s, "p1", "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected expired row to miss, got %v", err)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := factory(t, &testClock{t: day0})
		ctx := context.Background()
		row := newRow("c1", "p1", jwt.KindRefresh, day0, time.Hour)
		if err := s.Create(ctx, row); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Create(ctx, row); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("CreateRejectsAccessKind", func(t *testing.T) {
		s := factory(t, &testClock{t: day0})
		if err := s.Create(context.Background(), newRow("a1", "p1", jwt.KindAccess, day0, time.Minute)); err == nil {
			t.Fatal("expected access credentials to be rejected")
		}
	})

	t.Run("RevokeIsIdempotentAndAuthoritative", func(t *testing.T) {
		s := factory(t, &testClock{t: day0})
		ctx := context.Background()
		if err := s.Create(ctx, newRow("c1", "p1", jwt.KindRefresh, day0, time.Hour)); err != nil {
			t.Fatalf("create: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := s.Revoke(ctx, "c1"); err != nil {
				t.Fatalf("revoke #%d: %v", i+1, err)
			}
		}
		if err := s.Revoke(ctx, "never-issued"); err != nil {
			t.Fatalf("revoke unknown: %v", err)
		}
		if _, err := FindActiveRefresh(ctx, s, "p1", "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected revoked row to miss, got %v", err)
		}
	})

	t.Run("Rotate", func(t *testing.T) {
		s := factory(t, &testClock{t: day0})
		ctx := context.Background()
		if err := s.Create(ctx, newRow("r1", "p1", jwt.KindRefresh, day0, time.Hour)); err != nil {
			t.Fatalf("create: %v", err)
		}

		next := newRow("r2", "p1", jwt.KindRefresh, day0.Add(5*time.Minute), time.Hour)
		if err := s.Rotate(ctx, "p1", "r1", next); err != nil {
			t.Fatalf("rotate: %v", err)
		}
		if _, err := FindActiveRefresh(ctx, s, "p1", "r1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected old row revoked, got %v", err)
		}
		if _, err := FindActiveRefresh(ctx, s, "p1", "r2"); err != nil {
			t.Fatalf("expected new row active, got %v", err)
		}

		replay := newRow("r3", "p1", jwt.KindRefresh, day0.Add(6*time.Minute), time.Hour)
		if err := s.Rotate(ctx, "p1", "r1", replay); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected rotating a revoked row to fail, got %v", err)
		}
		if _, err := FindActiveRefresh(ctx, s, "p1", "r3"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("failed rotation must not insert, got %v", err)
		}
	})

	t.Run("RotateConcurrentSingleWinner", func(t *testing.T) {
		s := factory(t, &testClock{t: day0})
		ctx := context.Background()
		if err := s.Create(ctx, newRow("r1", "p1", jwt.KindRefresh, day0, time.Hour)); err != nil {
			t.Fatalf("create: %v", err)
		}

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				next := newRow(fmt.Sprintf("n%d", i), "p1", jwt.KindRefresh, day0, time.Hour)
				if err := s.Rotate(ctx, "p1", "r1", next); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("expected exactly one winning rotation, got %d", wins)
		}
	})

	t.Run("RevokeAllForPrincipal", func(t *testing.T) {
		s := factory(t, &testClock{t: day0})
		ctx := context.Background()
		rows := []*Credential{
			newRow("r1", "p1", jwt.KindRefresh, day0, time.Hour),
			newRow("r2", "p1", jwt.KindRefresh, day0, time.Hour),
			newRow("x1", "p1", jwt.KindPasswordReset, day0, time.Hour),
			newRow("o1", "p2", jwt.KindRefresh, day0, time.Hour),
		}
		for _, r := range rows {
			if err := s.Create(ctx, r); err != nil {
				t.Fatalf("create %s: %v", r.ID, err)
			}
		}

		n, err := s.RevokeAllForPrincipal(ctx, "p1", jwt.KindRefresh)
		if err != nil {
			t.Fatalf("revoke all: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 revoked, got %d", n)
		}
		n, err = s.RevokeAllForPrincipal(ctx, "p1", jwt.KindRefresh)
		if err != nil || n != 0 {
			t.Fatalf("expected idempotent second call, got n=%d err=%v", n, err)
		}
		for _, id := range []string{"r1", "r2"} {
			if _, err := FindActiveRefresh(ctx, s, "p1", id); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected %s revoked, got %v", id, err)
			}
		}
		if _, err := s.FindActive(ctx, jwt.KindPasswordReset, "p1", "x1"); err != nil {
			t.Fatalf("expected other kind untouched, got %v", err)
		}
		if _, err := FindActiveRefresh(ctx, s, "p2", "o1"); err != nil {
			t.Fatalf("expected other principal untouched, got %v", err)
		}
	})

	t.Run("PurgeExpiredBefore", func(t *testing.T) {
		clock := &testClock{t: day0}
		s := factory(t, clock)
		ctx := context.Background()
		rows := []*Credential{
			newRow("old1", "p1", jwt.KindRefresh, day0, time.Minute),
			newRow("old2", "p2", jwt.KindPasswordReset, day0, 2*time.Minute),
			newRow("edge", "p1", jwt.KindRefresh, day0, 10*time.Minute),
			newRow("live", "p1", jwt.KindRefresh, day0, time.Hour),
		}
		for _, r := range rows {
			if err := s.Create(ctx, r); err != nil {
				t.Fatalf("create %s: %v", r.ID, err)
			}
		}

		n, err := s.PurgeExpiredBefore(ctx, day0.Add(10*time.Minute))
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if n != 2 {
			t.Fatalf("expected 2 purged, got %d", n)
		}
		if _, err := FindActiveRefresh(ctx, s, "p1", "edge"); err != nil {
			t.Fatalf("row expiring exactly at cutoff must survive, got %v", err)
		}
		n, err = s.PurgeExpiredBefore(ctx, day0.Add(10*time.Minute))
		if err != nil || n != 0 {
			t.Fatalf("expected idempotent purge, got n=%d err=%v", n, err)
		}
	})
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T, clock *testClock) Store {
		return NewMemoryStore(WithClock(clock.Now))
	})
}

func TestFromClaims(t *testing.T) {
	claims := jwt.Claims{
		ID:         "jti",
		Subject:    "p1",
		Kind:       jwt.KindRefresh,
		IssuedAt:   day0.Unix(),
		ExpiresAt:  day0.Add(time.Hour).Unix(),
		Credential: &jwt.CredentialFields{CredentialID: "cid-1"},
	}
	row := FromClaims("signed", claims)
	if row.ID != "cid-1" || row.PrincipalID != "p1" || row.Kind != jwt.KindRefresh || row.Revoked {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !row.MatchesValue("signed") {
		t.Fatal("expected digest of signed value")
	}
	if !row.ActiveAt(day0.Add(time.Hour)) || row.ActiveAt(day0.Add(time.Hour+time.Second)) {
		t.Fatal("ActiveAt must use strict expiry")
	}
}
