// Package partition manages the year-partitioned data tables. Each
// (entity kind, year) pair owns one independently-schemed physical table
// named "{kind}_{year}" with a synthetic primary key, one nullable column
// per inferred data column, and a server-populated import timestamp.
//
// A partition's column set is never altered in place. Re-import stages a
// replacement table, loads it fully, and then swaps it in; the old table and
// its catalog rows disappear in the same transaction the new ones appear in,
// so a failed load leaves the previous year's data untouched.
package partition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kpfister44/illinois-report-card-api/internal/catalog"
	"github.com/kpfister44/illinois-report-card-api/internal/schema"
	"github.com/kpfister44/illinois-report-card-api/internal/storage"
)

var (
	// ErrNotFound means no partition exists for the requested kind/year.
	ErrNotFound = errors.New("partition: not found")

	// ErrExists means a partition already exists where Create was called;
	// callers wanting replace semantics must go through staging + Swap.
	ErrExists = errors.New("partition: already exists")

	// ErrUnknownKind means the entity kind is not one of the supported set.
	ErrUnknownKind = errors.New("partition: unknown entity kind")
)

// tableBases maps accepted entity kind spellings onto table name prefixes.
var tableBases = map[string]string{
	"school":    "schools",
	"schools":   "schools",
	"district":  "districts",
	"districts": "districts",
	"state":     "state",
}

// TableBase resolves an entity kind to its table name prefix.
func TableBase(kind string) (string, error) {
	base, ok := tableBases[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return base, nil
}

// EntityType returns the singular entity type stored on master entity
// records for a given table base.
func EntityType(base string) string {
	switch base {
	case "schools":
		return "school"
	case "districts":
		return "district"
	default:
		return base
	}
}

// TableName returns the partition table name for kind and year.
func TableName(kind string, year int) (string, error) {
	base, err := TableBase(kind)
	if err != nil {
		return "", err
	}
	if year < 1000 || year > 9999 {
		return "", fmt.Errorf("partition: year must be a 4-digit integer, got %d", year)
	}
	return fmt.Sprintf("%s_%d", base, year), nil
}

// stagingSuffix names the temporary table a re-import loads into before the
// swap. The suffix contains no digits, so staging tables never parse as
// year partitions in ListYears.
const stagingSuffix = "_staging"

// StagingName returns the staging table name for a partition table.
func StagingName(table string) string { return table + stagingSuffix }

// Create builds the physical table for a new partition. It is not
// idempotent: creating over an existing partition is a caller error.
func Create(ctx context.Context, st *storage.Store, kind string, year int, cols []schema.Column) error {
	name, err := TableName(kind, year)
	if err != nil {
		return err
	}
	exists, err := st.TableExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	return createNamed(ctx, st, name, cols)
}

// CreateStaging drops any leftover staging table for the partition and
// creates a fresh one, returning its name.
func CreateStaging(ctx context.Context, st *storage.Store, kind string, year int, cols []schema.Column) (string, error) {
	name, err := TableName(kind, year)
	if err != nil {
		return "", err
	}
	staging := StagingName(name)
	if err := Drop(ctx, st, staging); err != nil {
		return "", err
	}
	if err := createNamed(ctx, st, staging, cols); err != nil {
		return "", err
	}
	return staging, nil
}

// createNamed renders and executes the CREATE TABLE statement: synthetic id,
// one nullable column per descriptor, imported_at timestamp.
func createNamed(ctx context.Context, st *storage.Store, name string, cols []schema.Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("partition: create %s: at least one column is required", name)
	}
	d := st.Dialect

	parts := make([]string, 0, len(cols)+2)
	parts = append(parts, d.QuoteIdent("id")+" "+d.SerialPK())
	for _, c := range cols {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("partition: create %s: column with empty name", name)
		}
		parts = append(parts, d.QuoteIdent(c.Name)+" "+c.Type.SQLType())
	}
	parts = append(parts, d.QuoteIdent("imported_at")+" "+d.TimestampColumn())

	ddl := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)",
		d.QuoteIdent(name), strings.Join(parts, ",\n  "))
	if err := st.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("partition: create %s: %w", name, err)
	}
	return nil
}

// Drop removes a table if it exists.
func Drop(ctx context.Context, st *storage.Store, name string) error {
	ddl := "DROP TABLE IF EXISTS " + st.Dialect.QuoteIdent(name)
	if err := st.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("partition: drop %s: %w", name, err)
	}
	return nil
}

// Reflect returns the column names of an existing partition, or ErrNotFound.
func Reflect(ctx context.Context, st *storage.Store, kind string, year int) ([]string, error) {
	name, err := TableName(kind, year)
	if err != nil {
		return nil, err
	}
	cols, err := st.Dialect.TableColumns(ctx, st.DB, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return cols, nil
}

// Swap promotes a fully loaded staging table to the live partition. Within
// one transaction it drops the old partition (if any), renames the staging
// table into place, and replaces the partition's catalog entries. Both
// supported backends have transactional DDL, so readers observe either the
// old partition or the new one.
func Swap(ctx context.Context, st *storage.Store, kind string, year int, entries []catalog.Entry) error {
	name, err := TableName(kind, year)
	if err != nil {
		return err
	}
	staging := StagingName(name)
	d := st.Dialect

	exists, err := st.TableExists(ctx, name)
	if err != nil {
		return err
	}

	tx, err := st.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("partition: swap %s: begin: %w", name, err)
	}
	defer tx.Rollback()

	if exists {
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+d.QuoteIdent(name)); err != nil {
			return fmt.Errorf("partition: swap %s: drop old: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, d.RenameTableSQL(staging, name)); err != nil {
		return fmt.Errorf("partition: swap %s: rename: %w", name, err)
	}
	if err := catalog.DeleteTx(ctx, tx, d, name); err != nil {
		return err
	}
	if err := catalog.InsertTx(ctx, tx, d, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("partition: swap %s: commit: %w", name, err)
	}
	return nil
}

// ListYears returns the sorted set of years that have a partition for kind.
// Table names that do not end in a 4-digit year token are skipped.
func ListYears(ctx context.Context, st *storage.Store, kind string) ([]int, error) {
	base, err := TableBase(kind)
	if err != nil {
		return nil, err
	}
	tables, err := st.Dialect.ListTables(ctx, st.DB)
	if err != nil {
		return nil, err
	}

	prefix := base + "_"
	seen := map[int]bool{}
	for _, t := range tables {
		rest, ok := strings.CutPrefix(t, prefix)
		if !ok || len(rest) != 4 {
			continue
		}
		year, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		seen[year] = true
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}
