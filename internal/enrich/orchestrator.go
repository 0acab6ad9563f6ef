package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fuelmap-ja/stations-cli/internal/config"
	"github.com/fuelmap-ja/stations-cli/internal/model"
	"github.com/fuelmap-ja/stations-cli/pkg/places"
)

// MaxChunkSize caps the configured chunk size. Chunks bound how much
// rate-limit budget a single unit of work can consume and give telemetry
// a safe persistence point between them.
const MaxChunkSize = 25

// Recorder persists run metadata and enriched records, keyed by run
// identifier so prior runs are never overwritten.
type Recorder interface {
	CreateRun(ctx context.Context, meta *model.RunMetadata) error
	AppendBatch(ctx context.Context, runID string, batch model.BatchTelemetry) error
	FinalizeRun(ctx context.Context, meta *model.RunMetadata, records []model.EnrichedStation) error
}

// RunResult is the output of one orchestrator invocation.
type RunResult struct {
	Records  []model.EnrichedStation
	Metadata *model.RunMetadata
}

// Orchestrator drives the enrichment pipeline over a full record set:
// dedup, chunking, per-record lookup/parse/merge, telemetry, persistence.
type Orchestrator struct {
	cfg    *config.Config
	client places.Client
	rec    Recorder
}

// New creates an Orchestrator with all dependencies.
func New(cfg *config.Config, client places.Client, rec Recorder) *Orchestrator {
	return &Orchestrator{cfg: cfg, client: client, rec: rec}
}

// Run enriches the full input set. Every deduplicated input record yields
// exactly one output record; per-record failures degrade to fallback and
// never abort the run. Only persistence failures are fatal.
func (o *Orchestrator) Run(ctx context.Context, records []model.RawStation) (*RunResult, error) {
	start := time.Now()
	meta := model.NewRunMetadata(start, o.cfg.Enrich.IncludePhotos)
	log := zap.L().With(zap.String("run_id", meta.RunID))

	kept, dupCounts := Dedupe(records)
	log.Info("run starting",
		zap.Int("input_records", len(records)),
		zap.Int("deduplicated", len(kept)),
		zap.Int("duplicates", len(records)-len(kept)),
	)

	if err := o.rec.CreateRun(ctx, meta); err != nil {
		return nil, eris.Wrap(err, "orchestrator: create run")
	}

	chunkSize := o.chunkSize()
	out := make([]model.EnrichedStation, 0, len(kept))

	for offset := 0; offset < len(kept); offset += chunkSize {
		end := offset + chunkSize
		if end > len(kept) {
			end = len(kept)
		}

		batch := o.processChunk(ctx, len(meta.Batches), kept[offset:end], dupCounts[offset:end], &out)
		meta.AppendBatch(batch)

		// Telemetry is flushed between chunks so a killed run still leaves
		// an inspectable trail. A failed flush is not worth aborting for.
		if err := o.rec.AppendBatch(ctx, meta.RunID, batch); err != nil {
			log.Warn("batch telemetry write failed", zap.Int("batch", batch.BatchIndex), zap.Error(err))
		}

		log.Info("batch complete",
			zap.Int("batch", batch.BatchIndex),
			zap.Int("records", batch.RecordCount),
			zap.Int("success", batch.SuccessCount),
			zap.Int("fallback", batch.FallbackCount),
			zap.Duration("elapsed", batch.Elapsed),
		)
	}

	meta.Finalize(time.Now(), model.RunStatusComplete)
	if err := o.rec.FinalizeRun(ctx, meta, out); err != nil {
		return nil, eris.Wrap(err, "orchestrator: finalize run")
	}

	log.Info("run complete",
		zap.Int("records", meta.TotalRecords),
		zap.Int("duplicates", meta.TotalDuplicates),
		zap.Int("fallbacks", meta.TotalFallbacks),
		zap.Duration("elapsed", meta.CompletedAt.Sub(meta.StartedAt)),
	)

	return &RunResult{Records: out, Metadata: meta}, nil
}

// processChunk runs each record in the chunk through the pipeline in
// order. The lookup client's limiter already serializes outbound requests,
// so there is nothing to gain from fanning out here.
func (o *Orchestrator) processChunk(ctx context.Context, index int, chunk []model.RawStation, dupCounts []int, out *[]model.EnrichedStation) model.BatchTelemetry {
	chunkStart := time.Now()
	batch := model.BatchTelemetry{
		BatchIndex:  index,
		RecordCount: len(chunk),
	}

	for i, raw := range chunk {
		rec := o.enrichOne(ctx, raw)
		if rec.Status == model.StatusFallback {
			batch.FallbackCount++
			batch.FailureReasons = append(batch.FailureReasons, rec.FailureReason)
		} else {
			batch.SuccessCount++
		}
		batch.DuplicateCount += dupCounts[i]
		*out = append(*out, rec)
	}

	batch.Elapsed = time.Since(chunkStart)
	return batch
}

// enrichOne takes a single record to its terminal state: enriched or
// fallback. Retry is entirely the lookup client's responsibility.
func (o *Orchestrator) enrichOne(ctx context.Context, raw model.RawStation) model.EnrichedStation {
	query := BuildQuery(raw.Name, raw.AddressHint, o.cfg.Places.Region)

	resp, err := o.client.TextSearch(ctx, query)
	if err != nil {
		return Merge(raw, nil, err)
	}

	enr, err := ParseResponse(resp, o.cfg.Enrich.Bounds, o.cfg.Enrich.IncludePhotos)
	return Merge(raw, enr, err)
}

func (o *Orchestrator) chunkSize() int {
	size := o.cfg.Enrich.ChunkSize
	if size <= 0 || size > MaxChunkSize {
		size = MaxChunkSize
	}
	return size
}
