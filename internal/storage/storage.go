// Package storage contains the store handle and dialect seam shared by every
// database-touching component. A Store is an open database/sql handle plus
// the Dialect needed to build DDL, rewrite placeholders, and reflect tables
// for that backend.
//
// Concrete backends live in subpackages (sqlite, postgres) and register
// themselves with the factory in this package via init; importing
// storage/all (even blank) makes every built-in backend available.
//
// The store handle is always passed explicitly. There is no package-level
// connection: every caller that talks to the database takes a *Store
// argument, which keeps lifetimes explicit and lets tests run against an
// isolated in-memory store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Dialect captures the backend-specific pieces of SQL generation and
// reflection. Everything else in the system speaks plain parameterized SQL
// with '?' placeholders and lets the dialect rewrite them.
type Dialect interface {
	// Name returns the backend kind, e.g. "sqlite" or "postgres".
	Name() string

	// Rebind rewrites '?' placeholders into the backend's notation.
	Rebind(query string) string

	// QuoteIdent quotes an identifier for safe inclusion in DDL/SQL.
	QuoteIdent(ident string) string

	// SerialPK returns the column definition tail for a synthetic
	// auto-incrementing primary key.
	SerialPK() string

	// TimestampColumn returns the definition tail for a server-populated
	// creation timestamp column.
	TimestampColumn() string

	// ListTables returns all base table names visible to the store.
	ListTables(ctx context.Context, db *sql.DB) ([]string, error)

	// TableColumns returns the ordered column names of table, or an empty
	// slice when the table does not exist.
	TableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error)

	// RenameTableSQL renders the statement renaming oldName to newName.
	RenameTableSQL(oldName, newName string) string

	// CreateEntitySearch installs the backend-native write-through search
	// index over entities_master (FTS5 triggers on SQLite, a tsvector
	// trigger on Postgres).
	CreateEntitySearch(ctx context.Context, db *sql.DB) error

	// SearchSQL returns the parameterized entity search query. Parameters
	// are (query, [entityType,] limit), with entityType present only when
	// withKind is true.
	SearchSQL(withKind bool) string

	// RebuildSearch rebuilds the search index from entities_master.
	RebuildSearch(ctx context.Context, db *sql.DB) error
}

// Store is an open database handle bound to its dialect.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// Exec runs a statement after placeholder rewriting.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.Rebind(query), args...); err != nil {
		return fmt.Errorf("storage: exec: %w", err)
	}
	return nil
}

// Query runs a query after placeholder rewriting.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.DB.QueryContext(ctx, s.Dialect.Rebind(query), args...)
}

// QueryRow runs a single-row query after placeholder rewriting.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.DB.QueryRowContext(ctx, s.Dialect.Rebind(query), args...)
}

// TableExists reports whether name is an existing table.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	cols, err := s.Dialect.TableColumns(ctx, s.DB, name)
	if err != nil {
		return false, err
	}
	return len(cols) > 0, nil
}

// Opener opens a backend for the given DSN, returning the store and a
// cleanup function.
type Opener func(ctx context.Context, dsn string) (*Store, func(), error)

var openers = map[string]Opener{}

// Register installs an Opener under kind. Backends call this from init.
func Register(kind string, open Opener) {
	openers[strings.ToLower(kind)] = open
}

// Open opens a store of the given kind. Unknown kinds list the registered
// backends in the error so a config typo is easy to correct.
func Open(ctx context.Context, kind, dsn string) (*Store, func(), error) {
	open, ok := openers[strings.ToLower(kind)]
	if !ok {
		kinds := make([]string, 0, len(openers))
		for k := range openers {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		return nil, nil, fmt.Errorf("storage: unknown store kind %q (registered: %s)",
			kind, strings.Join(kinds, ", "))
	}
	return open(ctx, dsn)
}
