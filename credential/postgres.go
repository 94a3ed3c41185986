package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Schema is the DDL PostgresStore expects. It is applied by the migrate
// command and is safe to run repeatedly.
const Schema = `
create table if not exists credentials (
	id           text primary key,
	principal_id text not null,
	kind         text not null,
	value_digest bytea not null,
	issued_at    timestamptz not null,
	expires_at   timestamptz not null,
	revoked      boolean not null default false
);
create index if not exists credentials_principal_kind_idx
	on credentials (principal_id, kind) where not revoked;
create index if not exists credentials_expires_at_idx
	on credentials (expires_at);
`

// PostgresStore keeps credentials in PostgreSQL via database/sql.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open handle. The caller owns db.
func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	o := buildOptions(opts)
	return &PostgresStore{db: db, now: o.now}
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, c *Credential) error {
	if err := validate(c); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		insert into credentials (id, principal_id, kind, value_digest, issued_at, expires_at, revoked)
		values ($1, $2, $3, $4, $5, $6, false)`,
		c.ID, c.PrincipalID, string(c.Kind), c.ValueDigest[:], c.IssuedAt.UTC(), c.ExpiresAt.UTC())
	return mapWriteErr(err)
}

// FindActive implements Store.
func (s *PostgresStore) FindActive(ctx context.Context, kind jwt.Kind, principalID, credentialID string) (*Credential, error) {
	var (
		digest    []byte
		issuedAt  time.Time
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		select value_digest, issued_at, expires_at from credentials
		where id = $1 and principal_id = $2 and kind = $3 and revoked = false and expires_at >= $4`,
		credentialID, principalID, string(kind), s.cutoff(),
	).Scan(&digest, &issuedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(digest) != 32 {
		return nil, fmt.Errorf("%w: corrupt digest length %d", ErrUnavailable, len(digest))
	}

	c := &Credential{
		ID:          credentialID,
		PrincipalID: principalID,
		Kind:        kind,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
	}
	copy(c.ValueDigest[:], digest)
	return c, nil
}

// Rotate implements Store.
func (s *PostgresStore) Rotate(ctx context.Context, principalID, oldID string, next *Credential) error {
	if err := validateNext(principalID, next); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update credentials set revoked = true
		where id = $1 and principal_id = $2 and kind = $3 and revoked = false and expires_at >= $4`,
		oldID, principalID, string(next.Kind), s.cutoff())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		insert into credentials (id, principal_id, kind, value_digest, issued_at, expires_at, revoked)
		values ($1, $2, $3, $4, $5, $6, false)`,
		next.ID, next.PrincipalID, string(next.Kind), next.ValueDigest[:], next.IssuedAt.UTC(), next.ExpiresAt.UTC(),
	); err != nil {
		return mapWriteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Revoke implements Store.
func (s *PostgresStore) Revoke(ctx context.Context, credentialID string) error {
	if _, err := s.db.ExecContext(ctx,
		`update credentials set revoked = true where id = $1 and revoked = false`, credentialID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForPrincipal implements Store.
func (s *PostgresStore) RevokeAllForPrincipal(ctx context.Context, principalID string, kind jwt.Kind) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update credentials set revoked = true where principal_id = $1 and kind = $2 and revoked = false`,
		principalID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// PurgeExpiredBefore implements Store.
func (s *PostgresStore) PurgeExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from credentials where expires_at < $1`, wholeSecond(now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}

// cutoff is the earliest expiry that still counts as active.
func (s *PostgresStore) cutoff() time.Time {
	return wholeSecond(s.now())
}

func wholeSecond(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
