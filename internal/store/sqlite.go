package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fuelmap-ja/stations-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       TEXT NOT NULL,
	completed_at     TEXT,
	photos_requested INTEGER NOT NULL DEFAULT 0,
	total_records    INTEGER NOT NULL DEFAULT 0,
	total_duplicates INTEGER NOT NULL DEFAULT 0,
	total_fallbacks  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_batches (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES runs(id),
	batch_index     INTEGER NOT NULL,
	record_count    INTEGER NOT NULL,
	success_count   INTEGER NOT NULL,
	fallback_count  INTEGER NOT NULL,
	duplicate_count INTEGER NOT NULL,
	elapsed_ms      INTEGER NOT NULL,
	failure_reasons TEXT,
	UNIQUE (run_id, batch_index)
);

CREATE TABLE IF NOT EXISTS stations (
	id       TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL REFERENCES runs(id),
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	status   TEXT NOT NULL,
	record   TEXT NOT NULL,
	UNIQUE (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_batches_run_id ON run_batches(run_id);
CREATE INDEX IF NOT EXISTS idx_stations_run_id ON stations(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts the run row at run start. The primary key rejects a
// second run with the same identifier rather than overwriting it.
func (s *SQLiteStore) CreateRun(ctx context.Context, meta *model.RunMetadata) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at, photos_requested) VALUES (?, ?, ?, ?)`,
		meta.RunID, string(meta.Status), formatTime(meta.StartedAt), boolToInt(meta.PhotosRequested),
	)
	return eris.Wrapf(err, "sqlite: create run %s", meta.RunID)
}

// AppendBatch records one chunk's telemetry as soon as the chunk finishes.
func (s *SQLiteStore) AppendBatch(ctx context.Context, runID string, batch model.BatchTelemetry) error {
	reasons, err := json.Marshal(batch.FailureReasons)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failure reasons")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_batches (id, run_id, batch_index, record_count, success_count, fallback_count, duplicate_count, elapsed_ms, failure_reasons)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, batch.BatchIndex, batch.RecordCount, batch.SuccessCount,
		batch.FallbackCount, batch.DuplicateCount, batch.Elapsed.Milliseconds(), string(reasons),
	)
	return eris.Wrapf(err, "sqlite: append batch %d to run %s", batch.BatchIndex, runID)
}

// FinalizeRun stamps the run totals and writes the full output record set
// in one transaction.
func (s *SQLiteStore) FinalizeRun(ctx context.Context, meta *model.RunMetadata, records []model.EnrichedStation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin finalize tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, total_records = ?, total_duplicates = ?, total_fallbacks = ? WHERE id = ?`,
		string(meta.Status), formatTime(meta.CompletedAt),
		meta.TotalRecords, meta.TotalDuplicates, meta.TotalFallbacks, meta.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize run %s", meta.RunID)
	}

	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal station %q", rec.Name)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stations (id, run_id, position, name, status, record) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), meta.RunID, i, rec.Name, string(rec.Status), string(payload),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert station %q", rec.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit finalize tx")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunMetadata, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, completed_at, photos_requested, total_records, total_duplicates, total_fallbacks
		 FROM runs WHERE id = ?`, runID)

	meta, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Errorf("sqlite: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	batches, err := s.getBatches(ctx, runID)
	if err != nil {
		return nil, err
	}
	meta.Batches = batches
	return meta, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunMetadata, error) {
	query := `SELECT id, status, started_at, completed_at, photos_requested, total_records, total_duplicates, total_fallbacks FROM runs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.RunMetadata
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *meta)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) GetStations(ctx context.Context, runID string) ([]model.EnrichedStation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM stations WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get stations for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var stations []model.EnrichedStation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan station")
		}
		var rec model.EnrichedStation
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal station")
		}
		stations = append(stations, rec)
	}
	return stations, eris.Wrap(rows.Err(), "sqlite: iterate stations")
}

func (s *SQLiteStore) getBatches(ctx context.Context, runID string) ([]model.BatchTelemetry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index, record_count, success_count, fallback_count, duplicate_count, elapsed_ms, failure_reasons
		 FROM run_batches WHERE run_id = ? ORDER BY batch_index`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batches for run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var batches []model.BatchTelemetry
	for rows.Next() {
		var b model.BatchTelemetry
		var elapsedMs int64
		var reasons sql.NullString
		if err := rows.Scan(&b.BatchIndex, &b.RecordCount, &b.SuccessCount, &b.FallbackCount, &b.DuplicateCount, &elapsedMs, &reasons); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		b.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if reasons.Valid && reasons.String != "" && reasons.String != "null" {
			if err := json.Unmarshal([]byte(reasons.String), &b.FailureReasons); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal failure reasons")
			}
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: iterate batches")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.RunMetadata, error) {
	var meta model.RunMetadata
	var status, startedAt string
	var completedAt sql.NullString
	var photos int
	if err := row.Scan(&meta.RunID, &status, &startedAt, &completedAt, &photos, &meta.TotalRecords, &meta.TotalDuplicates, &meta.TotalFallbacks); err != nil {
		return nil, err
	}
	meta.Status = model.RunStatus(status)
	meta.PhotosRequested = photos != 0

	var err error
	meta.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid && completedAt.String != "" {
		meta.CompletedAt, err = parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
	}
	return &meta, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
