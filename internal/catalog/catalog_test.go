package catalog_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kpfister44/illinois-report-card-api/internal/catalog"
	"github.com/kpfister44/illinois-report-card-api/internal/schema"
	"github.com/kpfister44/illinois-report-card-api/internal/storage"
	"github.com/kpfister44/illinois-report-card-api/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	st, closeStore, err := sqlite.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(closeStore)
	if err := catalog.EnsureSchema(context.Background(), st); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return st
}

func TestFromColumns(t *testing.T) {
	t.Parallel()

	cols := []schema.Column{
		{Name: "rcdts", Type: schema.TypeText, Category: schema.CategoryIdentifier, SourceLabel: "RCDTS"},
		{Name: "low_income_pct", Type: schema.TypePercentage, Category: schema.CategoryDemographics,
			SourceLabel: "Low-Income %", Suppressed: true},
	}
	entries := catalog.FromColumns(2024, "schools_2024", cols)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	e := entries[1]
	if e.Year != 2024 || e.TableName != "schools_2024" || e.ColumnName != "low_income_pct" {
		t.Errorf("entry = %+v", e)
	}
	if e.DataType != "percentage" || e.Category != "demographics" || !e.IsSuppressedIndicator {
		t.Errorf("entry = %+v", e)
	}
	if e.SourceColumnName != "Low-Income %" {
		t.Errorf("source label = %q", e.SourceColumnName)
	}
}

func TestInsertAndForPartition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	cols := []schema.Column{
		{Name: "rcdts", Type: schema.TypeText, Category: schema.CategoryIdentifier, SourceLabel: "RCDTS"},
		{Name: "total_enrollment", Type: schema.TypeInteger, Category: schema.CategoryEnrollment,
			SourceLabel: "Total Enrollment"},
	}
	entries := catalog.FromColumns(2024, "schools_2024", cols)

	tx, err := st.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := catalog.InsertTx(ctx, tx, st.Dialect, entries); err != nil {
		t.Fatalf("InsertTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := catalog.ForPartition(ctx, st, "schools_2024")
	if err != nil {
		t.Fatalf("ForPartition: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	// Insertion order is preserved.
	if got[0].ColumnName != "rcdts" || got[1].ColumnName != "total_enrollment" {
		t.Errorf("order = %q, %q", got[0].ColumnName, got[1].ColumnName)
	}
	if got[1].DataType != "integer" || got[1].SourceColumnName != "Total Enrollment" {
		t.Errorf("entry = %+v", got[1])
	}

	// Other partitions are untouched by queries for this one.
	other, err := catalog.ForPartition(ctx, st, "schools_2023")
	if err != nil {
		t.Fatalf("ForPartition other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unrelated partition has %d entries", len(other))
	}
}

func TestDeleteTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	cols := []schema.Column{{Name: "a", Type: schema.TypeText, SourceLabel: "A"}}
	for _, table := range []string{"schools_2023", "schools_2024"} {
		tx, err := st.DB.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := catalog.InsertTx(ctx, tx, st.Dialect, catalog.FromColumns(2024, table, cols)); err != nil {
			t.Fatalf("InsertTx %s: %v", table, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	tx, err := st.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := catalog.DeleteTx(ctx, tx, st.Dialect, "schools_2024"); err != nil {
		t.Fatalf("DeleteTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	deleted, err := catalog.ForPartition(ctx, st, "schools_2024")
	if err != nil {
		t.Fatalf("ForPartition: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("deleted partition still has %d entries", len(deleted))
	}
	kept, err := catalog.ForPartition(ctx, st, "schools_2023")
	if err != nil {
		t.Fatalf("ForPartition kept: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("unrelated partition lost its entries: %d", len(kept))
	}
}
