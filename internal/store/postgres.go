package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fuelmap-ja/stations-cli/internal/db"
	"github.com/fuelmap-ja/stations-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. SQLite is the default for
// single-operator use; Postgres serves shared deployments where several
// operators inspect the same run history.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       TIMESTAMPTZ NOT NULL,
	completed_at     TIMESTAMPTZ,
	photos_requested BOOLEAN NOT NULL DEFAULT FALSE,
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
	elapsed_ms      BIGINT NOT NULL,
	failure_reasons JSONB,
	UNIQUE (run_id, batch_index)
);

CREATE TABLE IF NOT EXISTS stations (
	id       TEXT PRIMARY KEY,
	run_id   TEXT NOT NULL REFERENCES runs(id),
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	status   TEXT NOT NULL,
	record   JSONB NOT NULL,
	UNIQUE (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_batches_run_id ON run_batches(run_id);
CREATE INDEX IF NOT EXISTS idx_stations_run_id ON stations(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, meta *model.RunMetadata) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at, photos_requested) VALUES ($1, $2, $3, $4)`,
		meta.RunID, string(meta.Status), meta.StartedAt, meta.PhotosRequested,
	)
	return eris.Wrapf(err, "postgres: create run %s", meta.RunID)
}

func (s *PostgresStore) AppendBatch(ctx context.Context, runID string, batch model.BatchTelemetry) error {
	reasons, err := json.Marshal(batch.FailureReasons)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal failure reasons")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_batches (id, run_id, batch_index, record_count, success_count, fallback_count, duplicate_count, elapsed_ms, failure_reasons)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), runID, batch.BatchIndex, batch.RecordCount, batch.SuccessCount,
		batch.FallbackCount, batch.DuplicateCount, batch.Elapsed.Milliseconds(), reasons,
	)
	return eris.Wrapf(err, "postgres: append batch %d to run %s", batch.BatchIndex, runID)
}

// FinalizeRun stamps the run totals and writes the full output record set
// in one transaction.
func (s *PostgresStore) FinalizeRun(ctx context.Context, meta *model.RunMetadata, records []model.EnrichedStation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin finalize tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`UPDATE runs SET status = $1, completed_at = $2, total_records = $3, total_duplicates = $4, total_fallbacks = $5 WHERE id = $6`,
		string(meta.Status), meta.CompletedAt, meta.TotalRecords, meta.TotalDuplicates, meta.TotalFallbacks, meta.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize run %s", meta.RunID)
	}

	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal station %q", rec.Name)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO stations (id, run_id, position, name, status, record) VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), meta.RunID, i, rec.Name, string(rec.Status), payload,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert station %q", rec.Name)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit finalize tx")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.RunMetadata, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, started_at, completed_at, photos_requested, total_records, total_duplicates, total_fallbacks
		 FROM runs WHERE id = $1`, runID)

	meta, err := scanPgRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	batches, err := s.getBatches(ctx, runID)
	if err != nil {
		return nil, err
	}
	meta.Batches = batches
	return meta, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunMetadata, error) {
	query := `SELECT id, status, started_at, completed_at, photos_requested, total_records, total_duplicates, total_fallbacks FROM runs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunMetadata
	for rows.Next() {
		meta, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *meta)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) GetStations(ctx context.Context, runID string) ([]model.EnrichedStation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM stations WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get stations for run %s", runID)
	}
	defer rows.Close()

	var stations []model.EnrichedStation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan station")
		}
		var rec model.EnrichedStation
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal station")
		}
		stations = append(stations, rec)
	}
	return stations, eris.Wrap(rows.Err(), "postgres: iterate stations")
}

func (s *PostgresStore) getBatches(ctx context.Context, runID string) ([]model.BatchTelemetry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT batch_index, record_count, success_count, fallback_count, duplicate_count, elapsed_ms, failure_reasons
		 FROM run_batches WHERE run_id = $1 ORDER BY batch_index`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batches for run %s", runID)
	}
	defer rows.Close()

	var batches []model.BatchTelemetry
	for rows.Next() {
		var b model.BatchTelemetry
		var elapsedMs int64
		var reasons []byte
		if err := rows.Scan(&b.BatchIndex, &b.RecordCount, &b.SuccessCount, &b.FallbackCount, &b.DuplicateCount, &elapsedMs, &reasons); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch")
		}
		b.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		if len(reasons) > 0 && string(reasons) != "null" {
			if err := json.Unmarshal(reasons, &b.FailureReasons); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal failure reasons")
			}
		}
		batches = append(batches, b)
	}
	return batches, eris.Wrap(rows.Err(), "postgres: iterate batches")
}

func scanPgRun(row rowScanner) (*model.RunMetadata, error) {
	var meta model.RunMetadata
	var status string
	var completedAt sql.NullTime
	if err := row.Scan(&meta.RunID, &status, &meta.StartedAt, &completedAt, &meta.PhotosRequested, &meta.TotalRecords, &meta.TotalDuplicates, &meta.TotalFallbacks); err != nil {
		return nil, err
	}
	meta.Status = model.RunStatus(status)
	if completedAt.Valid {
		meta.CompletedAt = completedAt.Time
	}
	return &meta, nil
}
