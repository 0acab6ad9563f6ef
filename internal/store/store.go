// Package store persists enrichment runs and their output records. Each
// run's rows are keyed by run identifier and insert-only, so historical
// runs remain inspectable forever.
package store

import (
	"context"

	"github.com/fuelmap-ja/stations-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
// It satisfies enrich.Recorder.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, meta *model.RunMetadata) error
	AppendBatch(ctx context.Context, runID string, batch model.BatchTelemetry) error
	FinalizeRun(ctx context.Context, meta *model.RunMetadata, records []model.EnrichedStation) error
	GetRun(ctx context.Context, runID string) (*model.RunMetadata, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunMetadata, error)

	// Output records
	GetStations(ctx context.Context, runID string) ([]model.EnrichedStation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
