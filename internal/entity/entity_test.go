package entity_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kpfister44/illinois-report-card-api/internal/entity"
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
	if err := entity.EnsureSchema(context.Background(), st); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return st
}

func TestUpsertFirstSeenWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	first := entity.Record{
		RCDTS: "150162990250001", EntityType: "school",
		Name: "Lincoln Elementary", City: "Chicago", County: "Cook",
	}
	inserted, err := entity.Upsert(ctx, st, first)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !inserted {
		t.Fatal("first Upsert reported no insert")
	}

	renamed := first
	renamed.Name = "Lincoln Elem (renamed)"
	inserted, err = entity.Upsert(ctx, st, renamed)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if inserted {
		t.Error("second Upsert reported an insert")
	}

	rec, err := entity.Get(ctx, st, first.RCDTS)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Name != "Lincoln Elementary" {
		t.Errorf("name = %q, want first-seen name", rec.Name)
	}
}

func TestUpsertRejectsEmptyRCDTS(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	if _, err := entity.Upsert(context.Background(), st, entity.Record{Name: "x"}); err == nil {
		t.Fatal("Upsert accepted empty rcdts")
	}
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	_, err := entity.Get(context.Background(), st, "000000000000000")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func seedEntities(t *testing.T, st *storage.Store) {
	t.Helper()
	ctx := context.Background()
	recs := []entity.Record{
		{RCDTS: "150162990250001", EntityType: "school", Name: "Lincoln Elementary", City: "Chicago", County: "Cook"},
		{RCDTS: "150162990250002", EntityType: "school", Name: "Washington Middle", City: "Chicago", County: "Cook"},
		{RCDTS: "15016299025", EntityType: "district", Name: "Lincoln School District 99", City: "Chicago", County: "Cook"},
	}
	for _, rec := range recs {
		if _, err := entity.Upsert(ctx, st, rec); err != nil {
			t.Fatalf("seed %s: %v", rec.RCDTS, err)
		}
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	seedEntities(t, st)

	got, err := entity.Search(ctx, st, "lincoln", "", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search(lincoln) = %d results, want 2", len(got))
	}

	// Narrowing by entity type drops the district.
	got, err = entity.Search(ctx, st, "lincoln", "school", 0)
	if err != nil {
		t.Fatalf("Search with kind: %v", err)
	}
	if len(got) != 1 || got[0].RCDTS != "150162990250001" {
		t.Fatalf("Search(lincoln, school) = %+v", got)
	}

	if _, err := entity.Search(ctx, st, "   ", "", 0); err == nil {
		t.Error("Search accepted a blank query")
	}
}

func TestSearchLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	for i := 0; i < 5; i++ {
		rec := entity.Record{
			RCDTS:      fmt.Sprintf("%015d", i),
			EntityType: "school",
			Name:       fmt.Sprintf("Riverside School %d", i),
			City:       "Peoria",
		}
		if _, err := entity.Upsert(ctx, st, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := entity.Search(ctx, st, "riverside", "", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("limited search returned %d results, want 2", len(got))
	}
}

func TestRebuildIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	seedEntities(t, st)

	// Simulate drift: blow the index away behind the triggers' back.
	if err := st.Exec(ctx, `DELETE FROM entities_fts`); err != nil {
		t.Fatalf("clear index: %v", err)
	}
	got, err := entity.Search(ctx, st, "lincoln", "", 0)
	if err != nil {
		t.Fatalf("Search on cleared index: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("cleared index still returns %d results", len(got))
	}

	if err := entity.RebuildIndex(ctx, st); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	got, err = entity.Search(ctx, st, "lincoln", "", 0)
	if err != nil {
		t.Fatalf("Search after rebuild: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search after rebuild = %d results, want 2", len(got))
	}
}
