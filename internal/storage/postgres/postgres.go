// Package postgres implements the Postgres storage backend. It routes
// through pgx's database/sql adapter so the rest of the system stays on one
// database/sql code path regardless of backend; the entity search index is a
// trigger-maintained tsvector column instead of SQLite's FTS5 table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver "pgx"

	"github.com/kpfister44/illinois-report-card-api/internal/storage"
)

func init() {
	storage.Register("postgres", Open)
}

// Open opens a Postgres store using a pgx connection string.
func Open(ctx context.Context, dsn string) (*storage.Store, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &storage.Store{DB: db, Dialect: dialect{}}, func() { db.Close() }, nil
}

type dialect struct{}

func (dialect) Name() string { return "postgres" }

// Rebind rewrites '?' placeholders to $1..$n. Generated statements never
// contain a literal question mark outside a placeholder position, so a
// plain scan is sufficient.
func (dialect) Rebind(query string) string {
	if !strings.ContainsRune(query, '?') {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (dialect) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (dialect) SerialPK() string { return "BIGSERIAL PRIMARY KEY" }

func (dialect) TimestampColumn() string {
	return "TIMESTAMPTZ NOT NULL DEFAULT now()"
}

func (dialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("postgres: list tables: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (dialect) TableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: table columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("postgres: table columns: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (d dialect) RenameTableSQL(oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		d.QuoteIdent(oldName), d.QuoteIdent(newName))
}

// CreateEntitySearch adds a tsvector column to entities_master and a trigger
// keeping it current, which is Postgres's native equivalent of the SQLite
// FTS5 write-through index.
func (dialect) CreateEntitySearch(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`ALTER TABLE entities_master ADD COLUMN IF NOT EXISTS search_vec tsvector`,
		`CREATE INDEX IF NOT EXISTS entities_master_search_idx
		 ON entities_master USING GIN (search_vec)`,
		`CREATE OR REPLACE FUNCTION entities_master_search_sync() RETURNS trigger AS $fn$
		 BEGIN
			NEW.search_vec := to_tsvector('simple',
				coalesce(NEW.name, '') || ' ' ||
				coalesce(NEW.city, '') || ' ' ||
				coalesce(NEW.county, ''));
			RETURN NEW;
		 END
		 $fn$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS entities_master_search_sync ON entities_master`,
		`CREATE TRIGGER entities_master_search_sync
		 BEFORE INSERT OR UPDATE ON entities_master
		 FOR EACH ROW EXECUTE FUNCTION entities_master_search_sync()`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: entity search setup: %w", err)
		}
	}
	return nil
}

func (dialect) SearchSQL(withKind bool) string {
	q := `SELECT rcdts, entity_type, name, city, county
	      FROM entities_master WHERE search_vec @@ plainto_tsquery('simple', ?)`
	if withKind {
		q += ` AND entity_type = ?`
	}
	return q + ` ORDER BY name LIMIT ?`
}

func (dialect) RebuildSearch(ctx context.Context, db *sql.DB) error {
	// The BEFORE UPDATE trigger recomputes search_vec for every row.
	_, err := db.ExecContext(ctx, `UPDATE entities_master SET rcdts = rcdts`)
	if err != nil {
		return fmt.Errorf("postgres: rebuild search: %w", err)
	}
	return nil
}
