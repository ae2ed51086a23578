// Package query compiles declarative requests (field projection, filters,
// sort, pagination) into parameterized SQL against a partition whose column
// set is only known at runtime.
//
// Identifier safety rests on one rule: every column name in a generated
// statement comes from the partition's reflected column list, never from the
// request. Request values only ever appear as bound parameters. Unknown
// fields, sort columns, and filter operators are rejected, not ignored.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kpfister44/illinois-report-card-api/internal/metrics"
	"github.com/kpfister44/illinois-report-card-api/internal/partition"
	"github.com/kpfister44/illinois-report-card-api/internal/storage"
)

// DefaultLimit applies when a request does not set a positive limit.
const DefaultLimit = 100

// Request is one declarative query.
type Request struct {
	// Kind and Year select the partition.
	Kind string
	Year int

	// Fields is the projection. Empty means all columns.
	Fields []string

	// Filters maps column names to either a literal (equality) or an
	// operator object {"gte"|"lte"|"gt"|"lt": value, "in": [values]}.
	Filters map[string]any

	// Sort is the sort column; empty means unsorted. SortDir is "asc" or
	// "desc"; anything unrecognized falls back to ascending.
	Sort    string
	SortDir string

	Limit  int
	Offset int
}

// Result is a page of rows plus the unpaginated total.
type Result struct {
	Rows   []map[string]any
	Total  int
	Limit  int
	Offset int
}

// RequestError is a user-input error: the request itself is wrong, and the
// message carries enough detail to correct it.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func requestErrorf(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// operators maps filter operator keys to SQL comparison operators.
var operators = map[string]string{
	"gte": ">=",
	"lte": "<=",
	"gt":  ">",
	"lt":  "<",
}

// Execute validates the request against the partition's reflected schema,
// then runs the count query followed by the paginated data query.
func Execute(ctx context.Context, st *storage.Store, req Request) (*Result, error) {
	table, err := partition.TableName(req.Kind, req.Year)
	if err != nil {
		if errors.Is(err, partition.ErrUnknownKind) {
			return nil, requestErrorf("unknown entity kind %q (want school, district, or state)", req.Kind)
		}
		return nil, &RequestError{Message: err.Error()}
	}

	start := time.Now()
	res, err := execute(ctx, st, req, table)
	metrics.RecordQuery(table, err, time.Since(start))
	return res, err
}

func execute(ctx context.Context, st *storage.Store, req Request, table string) (*Result, error) {
	cols, err := partition.Reflect(ctx, st, req.Kind, req.Year)
	if err != nil {
		if errors.Is(err, partition.ErrNotFound) {
			return nil, noDataError(ctx, st, req)
		}
		return nil, err
	}

	colSet := make(map[string]bool, len(cols))
	for _, c := range cols {
		colSet[c] = true
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = cols
	}
	for _, f := range fields {
		if !colSet[f] {
			return nil, requestErrorf("unknown field %q for %s", f, table)
		}
	}

	where, args, err := compileFilters(req.Filters, colSet, table, st.Dialect)
	if err != nil {
		return nil, err
	}

	orderBy, err := compileSort(req.Sort, req.SortDir, colSet, table, st.Dialect)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	d := st.Dialect
	countSQL := "SELECT COUNT(*) FROM " + d.QuoteIdent(table) + where

	var total int
	if err := st.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("query: count %s: %w", table, err)
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = d.QuoteIdent(f)
	}
	dataSQL := "SELECT " + strings.Join(quoted, ", ") +
		" FROM " + d.QuoteIdent(table) + where + orderBy +
		" LIMIT ? OFFSET ?"
	dataArgs := append(append([]any{}, args...), limit, offset)

	rows, err := st.Query(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, fmt.Errorf("query: select %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows, fields)
	if err != nil {
		return nil, err
	}
	return &Result{Rows: out, Total: total, Limit: limit, Offset: offset}, nil
}

// noDataError builds the user-facing "no data for this year" error, listing
// the years that do exist so the caller can correct the request.
func noDataError(ctx context.Context, st *storage.Store, req Request) error {
	years, err := partition.ListYears(ctx, st, req.Kind)
	if err != nil || len(years) == 0 {
		return requestErrorf("no data available for %s in year %d", req.Kind, req.Year)
	}
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprint(y)
	}
	return requestErrorf("no data available for %s in year %d (available years: %s)",
		req.Kind, req.Year, strings.Join(parts, ", "))
}

// compileFilters renders the WHERE clause. Filter keys are processed in
// sorted order so generated SQL is deterministic for a given request.
func compileFilters(filters map[string]any, colSet map[string]bool, table string, d storage.Dialect) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var preds []string
	var args []any
	for _, col := range keys {
		if !colSet[col] {
			return "", nil, requestErrorf("unknown filter column %q for %s", col, table)
		}
		quotedCol := d.QuoteIdent(col)

		switch v := filters[col].(type) {
		case map[string]any:
			ops := make([]string, 0, len(v))
			for op := range v {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				if op == "in" {
					list, ok := v[op].([]any)
					if !ok || len(list) == 0 {
						// Tolerated per the query contract: an empty or
						// non-list "in" payload is skipped.
						continue
					}
					holders := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
					preds = append(preds, fmt.Sprintf("%s IN (%s)", quotedCol, holders))
					args = append(args, list...)
					continue
				}
				sqlOp, ok := operators[op]
				if !ok {
					return "", nil, requestErrorf("unknown filter operator %q on column %q", op, col)
				}
				preds = append(preds, fmt.Sprintf("%s %s ?", quotedCol, sqlOp))
				args = append(args, v[op])
			}
		default:
			preds = append(preds, quotedCol+" = ?")
			args = append(args, v)
		}
	}

	if len(preds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args, nil
}

func compileSort(col, dir string, colSet map[string]bool, table string, d storage.Dialect) (string, error) {
	if col == "" {
		return "", nil
	}
	if !colSet[col] {
		return "", requestErrorf("unknown sort column %q for %s", col, table)
	}
	direction := "ASC"
	if strings.EqualFold(dir, "desc") {
		direction = "DESC"
	}
	return " ORDER BY " + d.QuoteIdent(col) + " " + direction, nil
}

// scanRows reads every row into a map keyed by the projected field names.
func scanRows(rows *sql.Rows, fields []string) ([]map[string]any, error) {
	out := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query: scan: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f] = normalizeValue(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue folds driver-specific raw types into plain Go values.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
