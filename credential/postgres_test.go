package credential

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPostgresStore(db, WithClock(func() time.Time { return day0.Add(1500 * time.Millisecond) })), mock
}

func TestPostgresCreate(t *testing.T) {
	s, mock := newMockStore(t)
	row := newRow("c1", "p1", jwt.KindRefresh, day0, time.Hour)

	mock.ExpectExec("insert into credentials").
		WithArgs("c1", "p1", "refresh", row.ValueDigest[:], sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Create(context.Background(), row); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestPostgresCreateDuplicate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("insert into credentials").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := s.Create(context.Background(), newRow("c1", "p1", jwt.KindRefresh, day0, time.Hour))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPostgresFindActiveFiltersInQuery(t *testing.T) {
	s, mock := newMockStore(t)
	digest := Digest("signed-c1")
	cutoff := day0.Add(time.Second).UTC()

	mock.ExpectQuery("select value_digest, issued_at, expires_at from credentials where id = .+ and revoked = false and expires_at >= ").
		WithArgs("c1", "p1", "refresh", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"value_digest", "issued_at", "expires_at"}).
			AddRow(digest[:], day0, day0.Add(time.Hour)))

	got, err := FindActiveRefresh(context.Background(), s, "p1", "c1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.MatchesValue("signed-c1") || got.Kind != jwt.KindRefresh {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestPostgresFindActiveNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select value_digest").WillReturnError(sql.ErrNoRows)

	if _, err := FindActiveRefresh(context.Background(), s, "p1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresFindActiveBackendError(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("select value_digest").WillReturnError(errors.New("connection reset"))

	if _, err := FindActiveRefresh(context.Background(), s, "p1", "c1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPostgresRotateCommits(t *testing.T) {
	s, mock := newMockStore(t)
	next := newRow("r2", "p1", jwt.KindRefresh, day0, time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("update credentials set revoked = true where id = .+ and revoked = false").
		WithArgs("r1", "p1", "refresh", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into credentials").
		WithArgs("r2", "p1", "refresh", next.ValueDigest[:], sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Rotate(context.Background(), "p1", "r1", next); err != nil {
		t.Fatalf("rotate: %v", err)
	}
}

func TestPostgresRotateRollsBackWhenOldInactive(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("update credentials set revoked = true").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Rotate(context.Background(), "p1", "r1", newRow("r2", "p1", jwt.KindRefresh, day0, time.Hour))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRotateRollsBackOnInsertFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("update credentials set revoked = true").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into credentials").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Rotate(context.Background(), "p1", "r1", newRow("r2", "p1", jwt.KindRefresh, day0, time.Hour))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPostgresRevokeAll(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("update credentials set revoked = true where principal_id = .+ and kind = .+ and revoked = false").
		WithArgs("p1", "refresh").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.RevokeAllForPrincipal(context.Background(), "p1", jwt.KindRefresh)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}

func TestPostgresRevokeUnknownIsNoop(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("update credentials set revoked = true where id = ").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Revoke(context.Background(), "missing"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
}

func TestPostgresPurge(t *testing.T) {
	s, mock := newMockStore(t)
	now := day0.Add(2*time.Hour + 400*time.Millisecond)
	mock.ExpectExec("delete from credentials where expires_at < ").
		WithArgs(day0.Add(2 * time.Hour).UTC()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := s.PurgeExpiredBefore(context.Background(), now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}
