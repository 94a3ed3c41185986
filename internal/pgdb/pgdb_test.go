package pgdb

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMigrateAppliesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	exists := regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM authcore_schema_migrations WHERE name = $1)`)
	record := regexp.QuoteMeta(`INSERT INTO authcore_schema_migrations (name) VALUES ($1)`)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS authcore_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectBegin()
	mock.ExpectQuery(exists).WithArgs("0001_credentials").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(exists).WithArgs("0002_permissions").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("create table if not exists permissions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(record).WithArgs("0002_permissions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(applied) != 1 || applied[0] != "0002_permissions" {
		t.Fatalf("unexpected applied set %v", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigrateStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS authcore_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("create table if not exists credentials").WillReturnError(errors.New("permission denied for schema public"))
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), db)
	if err == nil {
		t.Fatal("expected migration failure")
	}
	if len(applied) != 0 {
		t.Fatalf("expected nothing applied, got %v", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected missing dsn to fail")
	}
}
