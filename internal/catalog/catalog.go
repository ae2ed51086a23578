// Package catalog persists per-partition column metadata in the
// schema_metadata table: one row per (year, partition, column) recording the
// inferred type, semantic category, original source label, and whether the
// column ever carried a suppression marker.
//
// Entries are append-only from the caller's point of view: they are written
// during import and only ever replaced wholesale, inside the same
// transaction that swaps the partition itself.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kpfister44/illinois-report-card-api/internal/schema"
	"github.com/kpfister44/illinois-report-card-api/internal/storage"
)

// Entry is one schema_metadata row.
type Entry struct {
	Year                  int
	TableName             string
	ColumnName            string
	DataType              string
	Category              string
	Description           string
	SourceColumnName      string
	IsSuppressedIndicator bool
}

// EnsureSchema creates the schema_metadata table if it does not exist.
func EnsureSchema(ctx context.Context, st *storage.Store) error {
	d := st.Dialect
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS schema_metadata (
  %s %s,
  year BIGINT NOT NULL,
  table_name TEXT NOT NULL,
  column_name TEXT NOT NULL,
  data_type TEXT NOT NULL,
  category TEXT NOT NULL,
  description TEXT,
  source_column_name TEXT,
  is_suppressed_indicator BOOLEAN NOT NULL DEFAULT FALSE,
  UNIQUE (table_name, column_name)
)`, d.QuoteIdent("id"), d.SerialPK())

	if err := st.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("catalog: ensure schema: %w", err)
	}
	return nil
}

// FromColumns builds the catalog entries for a freshly inferred partition.
func FromColumns(year int, tableName string, cols []schema.Column) []Entry {
	entries := make([]Entry, 0, len(cols))
	for _, c := range cols {
		entries = append(entries, Entry{
			Year:                  year,
			TableName:             tableName,
			ColumnName:            c.Name,
			DataType:              string(c.Type),
			Category:              string(c.Category),
			SourceColumnName:      c.SourceLabel,
			IsSuppressedIndicator: c.Suppressed,
		})
	}
	return entries
}

// ForPartition returns the entries for one partition table, in insertion
// order. An empty result means no metadata was recorded for that partition.
func ForPartition(ctx context.Context, st *storage.Store, tableName string) ([]Entry, error) {
	rows, err := st.Query(ctx,
		`SELECT year, table_name, column_name, data_type, category,
		        description, source_column_name, is_suppressed_indicator
		 FROM schema_metadata WHERE table_name = ? ORDER BY id`, tableName)
	if err != nil {
		return nil, fmt.Errorf("catalog: query: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			description sql.NullString
			source      sql.NullString
		)
		if err := rows.Scan(&e.Year, &e.TableName, &e.ColumnName, &e.DataType,
			&e.Category, &description, &source, &e.IsSuppressedIndicator); err != nil {
			return nil, fmt.Errorf("catalog: scan: %w", err)
		}
		e.Description = description.String
		e.SourceColumnName = source.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteTx removes every entry for tableName inside tx. Used by the
// partition swap so old metadata disappears atomically with the old table.
func DeleteTx(ctx context.Context, tx *sql.Tx, d storage.Dialect, tableName string) error {
	_, err := tx.ExecContext(ctx,
		d.Rebind(`DELETE FROM schema_metadata WHERE table_name = ?`), tableName)
	if err != nil {
		return fmt.Errorf("catalog: delete for %s: %w", tableName, err)
	}
	return nil
}

// InsertTx writes entries inside tx.
func InsertTx(ctx context.Context, tx *sql.Tx, d storage.Dialect, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, d.Rebind(
		`INSERT INTO schema_metadata
		   (year, table_name, column_name, data_type, category,
		    description, source_column_name, is_suppressed_indicator)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("catalog: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, e.Year, e.TableName, e.ColumnName,
			e.DataType, e.Category, nullable(e.Description),
			nullable(e.SourceColumnName), e.IsSuppressedIndicator)
		if err != nil {
			return fmt.Errorf("catalog: insert %s.%s: %w", e.TableName, e.ColumnName, err)
		}
	}
	return nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
