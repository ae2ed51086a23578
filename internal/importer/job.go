package importer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kpfister44/illinois-report-card-api/internal/storage"
)

// Status is the lifecycle state of an import job. Completed and failed are
// terminal.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is the persisted record of one workbook import.
type Job struct {
	ID             string
	EntityKind     string
	Year           int
	SourcePath     string
	SourceChecksum string
	Status         Status
	RowsImported   int
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

func ensureJobsTable(ctx context.Context, st *storage.Store) error {
	ddl := `CREATE TABLE IF NOT EXISTS import_jobs (
  id TEXT PRIMARY KEY,
  entity_kind TEXT NOT NULL,
  year BIGINT NOT NULL,
  source_path TEXT NOT NULL,
  source_checksum TEXT NOT NULL,
  status TEXT NOT NULL,
  rows_imported BIGINT NOT NULL DEFAULT 0,
  error_message TEXT,
  started_at TIMESTAMP,
  finished_at TIMESTAMP
)`
	if err := st.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("importer: ensure jobs table: %w", err)
	}
	return nil
}

func insertJob(ctx context.Context, st *storage.Store, j *Job) error {
	err := st.Exec(ctx,
		`INSERT INTO import_jobs
		   (id, entity_kind, year, source_path, source_checksum, status,
		    rows_imported, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.EntityKind, j.Year, j.SourcePath, j.SourceChecksum,
		string(j.Status), j.RowsImported, j.StartedAt)
	if err != nil {
		return fmt.Errorf("importer: record job: %w", err)
	}
	return nil
}

func updateJob(ctx context.Context, st *storage.Store, j *Job) error {
	var finished any
	if !j.FinishedAt.IsZero() {
		finished = j.FinishedAt
	}
	err := st.Exec(ctx,
		`UPDATE import_jobs
		 SET status = ?, rows_imported = ?, error_message = ?, finished_at = ?
		 WHERE id = ?`,
		string(j.Status), j.RowsImported, nullableString(j.Error), finished, j.ID)
	if err != nil {
		return fmt.Errorf("importer: update job: %w", err)
	}
	return nil
}

// GetJob loads a job record by id, or sql.ErrNoRows.
func GetJob(ctx context.Context, st *storage.Store, id string) (*Job, error) {
	var (
		j        Job
		status   string
		errMsg   sql.NullString
		started  sql.NullTime
		finished sql.NullTime
	)
	err := st.QueryRow(ctx,
		`SELECT id, entity_kind, year, source_path, source_checksum, status,
		        rows_imported, error_message, started_at, finished_at
		 FROM import_jobs WHERE id = ?`, id).
		Scan(&j.ID, &j.EntityKind, &j.Year, &j.SourcePath, &j.SourceChecksum,
			&status, &j.RowsImported, &errMsg, &started, &finished)
	if err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.Error = errMsg.String
	j.StartedAt = started.Time
	j.FinishedAt = finished.Time
	return &j, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
