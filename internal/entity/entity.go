// Package entity manages master entity records: the year-independent
// identity rows for schools, districts, and the state, keyed by their
// durable RCDTS code. Every insert is mirrored into the store's native
// full-text index (FTS5 on SQLite, tsvector on Postgres) by triggers
// installed at schema setup, so search stays write-through without any
// bookkeeping here.
package entity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kpfister44/illinois-report-card-api/internal/storage"
)

// Record is one entities_master row.
type Record struct {
	RCDTS      string
	EntityType string
	Name       string
	City       string
	County     string
}

// EnsureSchema creates entities_master and its search index.
func EnsureSchema(ctx context.Context, st *storage.Store) error {
	d := st.Dialect
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entities_master (
  %s %s,
  rcdts TEXT NOT NULL UNIQUE,
  entity_type TEXT NOT NULL,
  name TEXT,
  city TEXT,
  county TEXT,
  created_at %s
)`, d.QuoteIdent("id"), d.SerialPK(), d.TimestampColumn())

	if err := st.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("entity: ensure schema: %w", err)
	}
	if err := d.CreateEntitySearch(ctx, st.DB); err != nil {
		return fmt.Errorf("entity: ensure schema: %w", err)
	}
	return nil
}

const upsertSQL = `INSERT INTO entities_master (rcdts, entity_type, name, city, county)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (rcdts) DO NOTHING`

// Upsert inserts rec if no record with its RCDTS exists yet. First-seen
// wins: an existing record is never overwritten. Returns whether a row was
// inserted.
func Upsert(ctx context.Context, st *storage.Store, rec Record) (bool, error) {
	return upsert(ctx, st.DB, st.Dialect, rec)
}

// UpsertTx is Upsert inside an existing transaction.
func UpsertTx(ctx context.Context, tx *sql.Tx, d storage.Dialect, rec Record) (bool, error) {
	return upsert(ctx, tx, d, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, ex execer, d storage.Dialect, rec Record) (bool, error) {
	if strings.TrimSpace(rec.RCDTS) == "" {
		return false, fmt.Errorf("entity: upsert: rcdts must not be empty")
	}
	res, err := ex.ExecContext(ctx, d.Rebind(upsertSQL),
		rec.RCDTS, rec.EntityType, rec.Name, rec.City, rec.County)
	if err != nil {
		return false, fmt.Errorf("entity: upsert %s: %w", rec.RCDTS, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

// Get returns the record for an RCDTS code, or sql.ErrNoRows.
func Get(ctx context.Context, st *storage.Store, rcdts string) (*Record, error) {
	var rec Record
	var name, city, county sql.NullString
	err := st.QueryRow(ctx,
		`SELECT rcdts, entity_type, name, city, county
		 FROM entities_master WHERE rcdts = ?`, rcdts).
		Scan(&rec.RCDTS, &rec.EntityType, &name, &city, &county)
	if err != nil {
		return nil, err
	}
	rec.Name, rec.City, rec.County = name.String, city.String, county.String
	return &rec, nil
}

// Search runs a full-text query over the entity index. entityType narrows
// the result to one kind when non-empty; limit caps the result set and
// defaults to 50.
func Search(ctx context.Context, st *storage.Store, query, entityType string, limit int) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("entity: search query must not be empty")
	}
	if limit <= 0 {
		limit = 50
	}

	withKind := strings.TrimSpace(entityType) != ""
	args := make([]any, 0, 3)
	args = append(args, query)
	if withKind {
		args = append(args, entityType)
	}
	args = append(args, limit)

	rows, err := st.Query(ctx, st.Dialect.SearchSQL(withKind), args...)
	if err != nil {
		return nil, fmt.Errorf("entity: search: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var name, city, county sql.NullString
		if err := rows.Scan(&rec.RCDTS, &rec.EntityType, &name, &city, &county); err != nil {
			return nil, fmt.Errorf("entity: search scan: %w", err)
		}
		rec.Name, rec.City, rec.County = name.String, city.String, county.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RebuildIndex rebuilds the search index from entities_master, for recovery
// after bulk changes made outside the write-through path.
func RebuildIndex(ctx context.Context, st *storage.Store) error {
	return st.Dialect.RebuildSearch(ctx, st.DB)
}
