// Package importer orchestrates workbook imports end to end: parse the
// primary sheet, normalize headers, infer per-column types and categories,
// stage a fresh partition, clean and load every row, upsert master entity
// records, and atomically swap the staged partition plus its schema catalog
// entries into place.
//
// Each import runs synchronously to completion on the calling goroutine.
// Imports of different (kind, year) pairs are independent; racing imports of
// the same pair are not coordinated here and must be serialized by the
// caller.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/kpfister44/illinois-report-card-api/internal/catalog"
	"github.com/kpfister44/illinois-report-card-api/internal/clean"
	"github.com/kpfister44/illinois-report-card-api/internal/entity"
	"github.com/kpfister44/illinois-report-card-api/internal/metrics"
	"github.com/kpfister44/illinois-report-card-api/internal/partition"
	"github.com/kpfister44/illinois-report-card-api/internal/schema"
	"github.com/kpfister44/illinois-report-card-api/internal/storage"
	"github.com/kpfister44/illinois-report-card-api/internal/workbook"
)

// Options configure one import run.
type Options struct {
	// Path is the workbook file to import.
	Path string

	// Kind is the entity kind ("schools", "districts", "state"; singular
	// forms are accepted).
	Kind string

	// Year is the 4-digit data year.
	Year int

	// Sheet is the primary worksheet name. Empty means "General".
	Sheet string

	// SampleCap bounds the number of rows fed to type inference per
	// column. Zero means all rows.
	SampleCap int
}

// Run executes a full import and returns the job record. The returned job
// is also persisted in import_jobs; on failure its Status is StatusFailed
// and the error is returned alongside it.
func Run(ctx context.Context, st *storage.Store, opts Options) (*Job, error) {
	base, err := partition.TableBase(opts.Kind)
	if err != nil {
		return nil, err
	}
	table, err := partition.TableName(opts.Kind, opts.Year)
	if err != nil {
		return nil, err
	}
	sheetName := opts.Sheet
	if sheetName == "" {
		sheetName = "General"
	}

	if err := ensureSchemas(ctx, st); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("importer: read %s: %w", opts.Path, err)
	}

	job := &Job{
		ID:             uuid.NewString(),
		EntityKind:     base,
		Year:           opts.Year,
		SourcePath:     opts.Path,
		SourceChecksum: fmt.Sprintf("%016x", xxh3.Hash(data)),
		Status:         StatusQueued,
		StartedAt:      time.Now().UTC(),
	}
	if err := insertJob(ctx, st, job); err != nil {
		return nil, err
	}

	job.Status = StatusProcessing
	if err := updateJob(ctx, st, job); err != nil {
		return nil, err
	}

	rows, err := runSteps(ctx, st, opts, table, base, sheetName, data)
	job.FinishedAt = time.Now().UTC()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		if uerr := updateJob(ctx, st, job); uerr != nil {
			log.Printf("importer: job %s: %v", job.ID, uerr)
		}
		return job, err
	}

	job.Status = StatusCompleted
	job.RowsImported = rows
	if err := updateJob(ctx, st, job); err != nil {
		return job, err
	}
	log.Printf("importer: %s: imported %d rows from %s", table, rows, opts.Path)
	return job, nil
}

func ensureSchemas(ctx context.Context, st *storage.Store) error {
	if err := catalog.EnsureSchema(ctx, st); err != nil {
		return err
	}
	if err := entity.EnsureSchema(ctx, st); err != nil {
		return err
	}
	return ensureJobsTable(ctx, st)
}

// runSteps performs the fallible middle of the pipeline and returns the
// number of rows loaded. The staged table is cleaned up on any failure, so
// an aborted import leaves the previous partition (if any) untouched.
func runSteps(ctx context.Context, st *storage.Store, opts Options, table, base, sheetName string, data []byte) (rows int, err error) {
	start := time.Now()
	sheets, err := workbook.Parse(bytes.NewReader(data))
	metrics.RecordStep(table, "parse", err, time.Since(start))
	if err != nil {
		return 0, err
	}

	sheet, ok := sheets[sheetName]
	if !ok {
		return 0, fmt.Errorf("importer: no %q sheet in %s", sheetName, opts.Path)
	}
	if len(sheet.Rows) == 0 {
		return 0, fmt.Errorf("importer: no data rows in %q sheet of %s", sheetName, opts.Path)
	}

	start = time.Now()
	cols := inferColumns(sheet, opts.SampleCap)
	metrics.RecordStep(table, "infer", nil, time.Since(start))

	start = time.Now()
	staging, err := partition.CreateStaging(ctx, st, opts.Kind, opts.Year, cols)
	metrics.RecordStep(table, "create_staging", err, time.Since(start))
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if derr := partition.Drop(ctx, st, staging); derr != nil {
				log.Printf("importer: cleanup %s: %v", staging, derr)
			}
		}
	}()

	start = time.Now()
	rows, ents, err := loadRows(ctx, st, staging, cols, sheet.Rows)
	metrics.RecordStep(table, "load", err, time.Since(start))
	if err != nil {
		return 0, err
	}
	metrics.RecordRows(table, "inserted", int64(rows))

	start = time.Now()
	upserted, err := upsertEntities(ctx, st, base, ents)
	metrics.RecordStep(table, "entities", err, time.Since(start))
	if err != nil {
		return 0, err
	}
	metrics.RecordRows(table, "entities_upserted", int64(upserted))

	start = time.Now()
	err = partition.Swap(ctx, st, opts.Kind, opts.Year, catalog.FromColumns(opts.Year, table, cols))
	metrics.RecordStep(table, "swap", err, time.Since(start))
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// inferColumns normalizes and deduplicates the sheet's headers, then infers
// a type, category, and suppression flag per column from sampled values.
// Duplicate normalized labels are deduplicated deterministically by
// suffixing _2, _3, ... in header order.
func inferColumns(sheet *workbook.Sheet, sampleCap int) []schema.Column {
	names := make(map[string]bool, len(sheet.Headers))
	cols := make([]schema.Column, 0, len(sheet.Headers))

	for i, header := range sheet.Headers {
		name := clean.NormalizeLabel(header)
		if name == "" {
			name = fmt.Sprintf("column_%d", i)
		}
		if names[name] {
			for k := 2; ; k++ {
				cand := fmt.Sprintf("%s_%d", name, k)
				if !names[cand] {
					name = cand
					break
				}
			}
		}
		names[name] = true

		samples := sampleValues(sheet.Rows, header, sampleCap)
		cols = append(cols, schema.Column{
			Name:        name,
			Type:        schema.InferType(name, samples),
			Category:    schema.InferCategory(name),
			SourceLabel: header,
			Suppressed:  anySuppressed(samples),
		})
	}
	return cols
}

func sampleValues(rows []map[string]any, header string, cap int) []any {
	var out []any
	for _, row := range rows {
		v := row[header]
		if v == nil {
			continue
		}
		out = append(out, v)
		if cap > 0 && len(out) >= cap {
			break
		}
	}
	return out
}

func anySuppressed(samples []any) bool {
	for _, v := range samples {
		if strings.Contains(fmt.Sprint(v), clean.Marker) {
			return true
		}
	}
	return false
}

// loadRows cleans and inserts every sheet row into the staging table inside
// one transaction, and collects the master entity record carried by each row
// that has a non-empty identifier.
func loadRows(ctx context.Context, st *storage.Store, staging string, cols []schema.Column, rows []map[string]any) (int, []entity.Record, error) {
	d := st.Dialect

	names := make([]string, len(cols))
	holders := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.QuoteIdent(c.Name)
		holders[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(staging), strings.Join(names, ", "), strings.Join(holders, ", "))

	tx, err := st.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("importer: begin load: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.Rebind(insertSQL))
	if err != nil {
		return 0, nil, fmt.Errorf("importer: prepare insert: %w", err)
	}
	defer stmt.Close()

	var ents []entity.Record
	inserted := 0
	for _, row := range rows {
		args := make([]any, len(cols))
		cleaned := make(map[string]any, len(cols))
		for i, c := range cols {
			v := cleanValue(c.Type, row[c.SourceLabel])
			args[i] = v
			cleaned[c.Name] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return inserted, nil, fmt.Errorf("importer: insert into %s: %w", staging, err)
		}
		inserted++

		if rec, ok := entityFromRow(cleaned); ok {
			ents = append(ents, rec)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, nil, fmt.Errorf("importer: commit load: %w", err)
	}
	return inserted, ents, nil
}

// cleanValue dispatches to the cleaner matching the column's inferred type.
func cleanValue(t schema.Type, raw any) any {
	switch t {
	case schema.TypePercentage:
		return clean.Percentage(raw)
	case schema.TypeInteger:
		if v := clean.Count(raw); v != nil {
			return v
		}
		return clean.Suppressed(raw)
	case schema.TypeReal:
		if v := clean.Percentage(raw); v != nil {
			return v
		}
		return clean.Suppressed(raw)
	default:
		return clean.Suppressed(raw)
	}
}

// entityFromRow extracts the master entity record carried by a cleaned row,
// keyed by its rcdts column.
func entityFromRow(cleaned map[string]any) (entity.Record, bool) {
	v := cleaned["rcdts"]
	if v == nil {
		return entity.Record{}, false
	}
	id := strings.TrimSpace(fmt.Sprint(v))
	if id == "" {
		return entity.Record{}, false
	}
	return entity.Record{
		RCDTS:  id,
		Name:   stringField(cleaned, "school_name", "district_name", "name"),
		City:   stringField(cleaned, "city"),
		County: stringField(cleaned, "county"),
	}, true
}

func stringField(cleaned map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := cleaned[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// upsertEntities inserts the collected records, first-seen wins. Duplicate
// identifiers within one workbook collapse to a single insert attempt.
func upsertEntities(ctx context.Context, st *storage.Store, base string, ents []entity.Record) (int, error) {
	entityType := partition.EntityType(base)
	seen := make(map[string]bool, len(ents))
	upserted := 0
	for _, rec := range ents {
		if seen[rec.RCDTS] {
			continue
		}
		seen[rec.RCDTS] = true
		rec.EntityType = entityType
		inserted, err := entity.Upsert(ctx, st, rec)
		if err != nil {
			return upserted, err
		}
		if inserted {
			upserted++
		}
	}
	return upserted, nil
}
