package permission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Schema is the DDL PostgresSource reads from. Uniqueness and referential
// integrity are enforced by constraints at write time.
const Schema = `
create table if not exists permissions (
	id         text primary key,
	name       text not null unique,
	action     text not null,
	subject    text not null,
	conditions jsonb not null default '{}'::jsonb
);
create table if not exists roles (
	id     text primary key,
	name   text not null unique,
	active boolean not null default true
);
create table if not exists role_permissions (
	role_id       text not null references roles (id) on delete cascade,
	permission_id text not null references permissions (id) on delete cascade,
	primary key (role_id, permission_id)
);
create table if not exists principal_roles (
	principal_id text not null,
	role_id      text not null references roles (id) on delete cascade,
	primary key (principal_id, role_id)
);
`

// PostgresSource reads roles and permissions from PostgreSQL.
type PostgresSource struct {
	db *sql.DB
}

var _ Source = (*PostgresSource)(nil)

// NewPostgresSource wraps an open handle. The caller owns db.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// RoleIDsForPrincipal implements Source.
func (s *PostgresSource) RoleIDsForPrincipal(ctx context.Context, principalID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `select role_id from principal_roles where principal_id = $1`, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

// RolesByIDs implements Source.
func (s *PostgresSource) RolesByIDs(ctx context.Context, ids []string) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids, 1)

	rows, err := s.db.QueryContext(ctx, `select id, name, active from roles where id in (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var (
		roles []Role
		index = make(map[string]int, len(ids))
	)
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		index[r.ID] = len(roles)
		roles = append(roles, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(roles) == 0 {
		return nil, nil
	}

	rows, err = s.db.QueryContext(ctx,
		`select role_id, permission_id from role_permissions where role_id in (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var roleID, permID string
		if err := rows.Scan(&roleID, &permID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if i, ok := index[roleID]; ok {
			roles[i].PermissionIDs = append(roles[i].PermissionIDs, permID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return roles, nil
}

// PermissionsByIDs implements Source.
func (s *PostgresSource) PermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inClause(ids, 1)
	return s.queryPermissions(ctx,
		`select id, name, action, subject, conditions from permissions where id in (`+in+`)`, args...)
}

// AllPermissions implements Source.
func (s *PostgresSource) AllPermissions(ctx context.Context) ([]Permission, error) {
	return s.queryPermissions(ctx, `select id, name, action, subject, conditions from permissions order by name`)
}

func (s *PostgresSource) queryPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		var (
			p    Permission
			cond []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Action, &p.Subject, &cond); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(cond) > 0 {
			if err := json.Unmarshal(cond, &p.Conditions); err != nil {
				return nil, fmt.Errorf("%w: permission %s conditions: %v", ErrUnavailable, p.ID, err)
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// inClause returns "$n, $n+1, ..." for values and the matching argument list.
func inClause(values []string, start int) (string, []any) {
	var b strings.Builder
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(start + i))
		args[i] = v
	}
	return b.String(), args
}
