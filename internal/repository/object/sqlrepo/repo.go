// Package sqlrepo looks up domain objects in SQLite tables named after
// their target type.
package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/kailas-cloud/searchkit/internal/db"
)

// DriverName is the database/sql driver used by Open.
const DriverName = "sqlite"

// Repo implements search.ObjectLookup over SQL tables.
type Repo struct {
	db *sql.DB
}

// Open opens a SQLite database.
func Open(dsn string) (*Repo, error) {
	conn, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// SQLite serializes writers and ":memory:" is per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	return New(conn), nil
}

// New wraps an open database.
func New(conn *sql.DB) *Repo {
	return &Repo{db: conn}
}

// DB exposes the underlying handle.
func (r *Repo) DB() *sql.DB { return r.db }

// Ping checks the connection.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// FindByIDs selects rows of the target table whose id is in ids, keyed by
// id. Missing ids are absent from the result.
func (r *Repo) FindByIDs(ctx context.Context, target string, ids []string) (map[string]any, error) {
	if !db.IsValidIdentifier(target) {
		return nil, &db.Error{Op: db.OpSelect, Err: fmt.Errorf("invalid table name %q", target)}
	}
	out := make(map[string]any, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	stmt := fmt.Sprintf(`SELECT * FROM "%s" WHERE id IN (%s)`, target, marks)

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		out[fmt.Sprint(row["id"])] = row
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return out, nil
}

func scanRow(rows *sql.Rows, cols []string) (map[string]any, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(cols))
	for i, c := range cols {
		if b, ok := values[i].([]byte); ok {
			row[c] = string(b)
			continue
		}
		row[c] = values[i]
	}
	return row, nil
}
