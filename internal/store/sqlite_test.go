package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmap-ja/stations-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRun(id string) *model.RunMetadata {
	return &model.RunMetadata{
		RunID:           id,
		StartedAt:       time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Status:          model.RunStatusRunning,
		PhotosRequested: true,
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	meta := sampleRun("run-20260314-090000")
	require.NoError(t, s.CreateRun(ctx, meta))

	batch := model.BatchTelemetry{
		BatchIndex:     0,
		RecordCount:    2,
		SuccessCount:   1,
		FallbackCount:  1,
		DuplicateCount: 1,
		Elapsed:        2500 * time.Millisecond,
		FailureReasons: []string{"parse_error: provider returned no candidates"},
	}
	require.NoError(t, s.AppendBatch(ctx, meta.RunID, batch))

	lat, lng := 17.99, -76.95
	records := []model.EnrichedStation{
		{
			RawStation: model.RawStation{Name: "Texaco Spanish Town", AddressHint: "Main St"},
			Status:     model.StatusEnriched,
			Enrichment: &model.Enrichment{Latitude: &lat, Longitude: &lng, Rating: 4.2, ReviewCount: 87},
		},
		{
			RawStation:    model.RawStation{Name: "Mystery Station", Prices: map[string]string{"diesel": "179.00"}},
			Status:        model.StatusFallback,
			FailureReason: "parse_error: provider returned no candidates",
		},
	}

	meta.AppendBatch(batch)
	meta.Finalize(meta.StartedAt.Add(time.Minute), model.RunStatusComplete)
	require.NoError(t, s.FinalizeRun(ctx, meta, records))

	// Round-trip the run artifact.
	got, err := s.GetRun(ctx, meta.RunID)
	require.NoError(t, err)
	assert.Equal(t, meta.RunID, got.RunID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.True(t, got.PhotosRequested)
	assert.Equal(t, 2, got.TotalRecords)
	assert.Equal(t, 1, got.TotalDuplicates)
	assert.Equal(t, 1, got.TotalFallbacks)
	assert.True(t, got.StartedAt.Equal(meta.StartedAt))
	assert.True(t, got.CompletedAt.Equal(meta.CompletedAt))
	require.Len(t, got.Batches, 1)
	assert.Equal(t, batch.RecordCount, got.Batches[0].RecordCount)
	assert.Equal(t, 2500*time.Millisecond, got.Batches[0].Elapsed)
	assert.Equal(t, batch.FailureReasons, got.Batches[0].FailureReasons)

	// Round-trip the output records in order.
	stations, err := s.GetStations(ctx, meta.RunID)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Texaco Spanish Town", stations[0].Name)
	require.NotNil(t, stations[0].Enrichment)
	assert.InDelta(t, 17.99, *stations[0].Enrichment.Latitude, 0.0001)
	assert.Equal(t, model.StatusFallback, stations[1].Status)
	assert.Equal(t, map[string]string{"diesel": "179.00"}, stations[1].Prices)
}

func TestSQLite_PriorRunsNeverOverwritten(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	meta := sampleRun("run-20260314-090000")
	require.NoError(t, s.CreateRun(ctx, meta))

	// A second run with the same identifier is rejected, not replaced.
	err := s.CreateRun(ctx, sampleRun("run-20260314-090000"))
	require.Error(t, err)

	// A later run coexists with the earlier one.
	later := sampleRun("run-20260314-100000")
	require.NoError(t, s.CreateRun(ctx, later))

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_ListRunsFilterAndLimit(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i, id := range []string{"run-20260314-090000", "run-20260314-100000", "run-20260314-110000"} {
		meta := sampleRun(id)
		meta.StartedAt = meta.StartedAt.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.CreateRun(ctx, meta))
		if i < 2 {
			meta.Finalize(meta.StartedAt.Add(time.Minute), model.RunStatusComplete)
			require.NoError(t, s.FinalizeRun(ctx, meta, nil))
		}
	}

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, complete, 2)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	// Newest first.
	assert.Equal(t, "run-20260314-110000", limited[0].RunID)
}

func TestSQLite_GetRunNotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetRun(context.Background(), "run-19990101-000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_GetStationsEmptyRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	meta := sampleRun("run-20260314-090000")
	require.NoError(t, s.CreateRun(ctx, meta))

	stations, err := s.GetStations(ctx, meta.RunID)
	require.NoError(t, err)
	assert.Empty(t, stations)
}
