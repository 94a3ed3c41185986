// Package pgdb opens the Postgres pool used by the Postgres credential store
// and permission source, and applies their schemas.
package pgdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/credential"
	"github.com/MrEthical07/authcore/permission"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects through the pgx stdlib driver and pings the server.
func Open(ctx context.Context, dsn string, opts Options) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("pgdb: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgdb: ping: %w", err)
	}
	return db, nil
}

// Migration is one named DDL step.
type Migration struct {
	Name string
	SQL  string
}

// Migrations lists every schema authcore owns, in apply order.
var Migrations = []Migration{
	{Name: "0001_credentials", SQL: credential.Schema},
	{Name: "0002_permissions", SQL: permission.Schema},
}

const createHistory = `CREATE TABLE IF NOT EXISTS authcore_schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate applies every migration not yet recorded, each in its own
// transaction, and returns the names it applied.
func Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, createHistory); err != nil {
		return nil, fmt.Errorf("pgdb: create history: %w", err)
	}

	var applied []string
	for _, m := range Migrations {
		done, err := apply(ctx, db, m)
		if err != nil {
			return applied, fmt.Errorf("pgdb: %s: %w", m.Name, err)
		}
		if done {
			applied = append(applied, m.Name)
		}
	}
	return applied, nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM authcore_schema_migrations WHERE name = $1)`, m.Name,
	).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO authcore_schema_migrations (name) VALUES ($1)`, m.Name,
	); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
