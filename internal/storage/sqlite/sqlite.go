// Package sqlite implements the SQLite storage backend using database/sql
// over modernc.org/sqlite. SQLite is the primary store: its transactional
// DDL keeps the partition swap window closed, and its FTS5 module provides
// the native write-through entity search index.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/kpfister44/illinois-report-card-api/internal/storage"
)

func init() {
	storage.Register("sqlite", Open)
}

// Open opens a SQLite store. The DSN is passed straight to the driver, e.g.
// "reportcard.db" or "file:test?mode=memory&cache=shared".
func Open(ctx context.Context, dsn string) (*storage.Store, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	// Enable foreign keys by default; harmless if unsupported.
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	// In-memory databases evaporate when their last connection closes, so
	// pin the pool to a single connection. This also serializes writers,
	// which SQLite wants anyway.
	if strings.Contains(dsn, "memory") {
		db.SetMaxOpenConns(1)
	}

	return &storage.Store{DB: db, Dialect: dialect{}}, func() { db.Close() }, nil
}

type dialect struct{}

func (dialect) Name() string { return "sqlite" }

// Rebind is the identity: SQLite uses '?' natively.
func (dialect) Rebind(query string) string { return query }

func (dialect) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (dialect) SerialPK() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (dialect) TimestampColumn() string {
	return "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
}

func (dialect) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite: list tables: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (dialect) TableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: table columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("sqlite: table columns: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (d dialect) RenameTableSQL(oldName, newName string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
		d.QuoteIdent(oldName), d.QuoteIdent(newName))
}

// CreateEntitySearch sets up the FTS5 virtual table plus the insert, update,
// and delete triggers that mirror entities_master into it.
func (dialect) CreateEntitySearch(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
			rcdts UNINDEXED,
			entity_type UNINDEXED,
			name,
			city,
			county
		)`,
		`CREATE TRIGGER IF NOT EXISTS entities_fts_insert
		 AFTER INSERT ON entities_master
		 BEGIN
			INSERT INTO entities_fts(rcdts, entity_type, name, city, county)
			VALUES (new.rcdts, new.entity_type, new.name, new.city, new.county);
		 END`,
		`CREATE TRIGGER IF NOT EXISTS entities_fts_update
		 AFTER UPDATE ON entities_master
		 BEGIN
			UPDATE entities_fts
			SET rcdts = new.rcdts,
			    entity_type = new.entity_type,
			    name = new.name,
			    city = new.city,
			    county = new.county
			WHERE rcdts = old.rcdts;
		 END`,
		`CREATE TRIGGER IF NOT EXISTS entities_fts_delete
		 AFTER DELETE ON entities_master
		 BEGIN
			DELETE FROM entities_fts WHERE rcdts = old.rcdts;
		 END`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: entity search setup: %w", err)
		}
	}
	return nil
}

func (dialect) SearchSQL(withKind bool) string {
	q := `SELECT rcdts, entity_type, name, city, county
	      FROM entities_fts WHERE entities_fts MATCH ?`
	if withKind {
		q += ` AND entity_type = ?`
	}
	return q + ` LIMIT ?`
}

func (dialect) RebuildSearch(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM entities_fts`); err != nil {
		return fmt.Errorf("sqlite: rebuild search: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO entities_fts(rcdts, entity_type, name, city, county)
		 SELECT rcdts, entity_type, name, city, county FROM entities_master`)
	if err != nil {
		return fmt.Errorf("sqlite: rebuild search: %w", err)
	}
	return nil
}
