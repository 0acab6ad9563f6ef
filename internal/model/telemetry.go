package model

import "time"

// RunStatus tracks the lifecycle of an enrichment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// BatchTelemetry summarizes one processed chunk. Immutable once the chunk
// completes.
type BatchTelemetry struct {
	BatchIndex     int           `json:"batch_index" yaml:"batch_index"`
	RecordCount    int           `json:"record_count" yaml:"record_count"`
	SuccessCount   int           `json:"success_count" yaml:"success_count"`
	FallbackCount  int           `json:"fallback_count" yaml:"fallback_count"`
	DuplicateCount int           `json:"duplicate_count" yaml:"duplicate_count"`
	Elapsed        time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
	FailureReasons []string      `json:"failure_reasons,omitempty" yaml:"failure_reasons,omitempty"`
}

// RunMetadata is the audit artifact for one orchestrator invocation. One
// per run, appended to per batch, finalized and persisted at run end.
type RunMetadata struct {
	RunID           string           `json:"run_id" yaml:"run_id"`
	StartedAt       time.Time        `json:"started_at" yaml:"started_at"`
	CompletedAt     time.Time        `json:"completed_at" yaml:"completed_at"`
	Batches         []BatchTelemetry `json:"batches" yaml:"batches"`
	TotalRecords    int              `json:"total_records" yaml:"total_records"`
	TotalDuplicates int              `json:"total_duplicates" yaml:"total_duplicates"`
	TotalFallbacks  int              `json:"total_fallbacks" yaml:"total_fallbacks"`
	PhotosRequested bool             `json:"photos_requested" yaml:"photos_requested"`
	Status          RunStatus        `json:"status" yaml:"status"`
}

// NewRunMetadata creates the run artifact at run start. The run identifier
// is derived from the start time so output locations sort chronologically;
// the store's primary key rejects collisions.
func NewRunMetadata(start time.Time, photosRequested bool) *RunMetadata {
	return &RunMetadata{
		RunID:           "run-" + start.UTC().Format("20060102-150405"),
		StartedAt:       start.UTC(),
		PhotosRequested: photosRequested,
		Status:          RunStatusRunning,
	}
}

// AppendBatch records a completed chunk and rolls its counts into the run
// totals.
func (m *RunMetadata) AppendBatch(b BatchTelemetry) {
	m.Batches = append(m.Batches, b)
	m.TotalRecords += b.RecordCount
	m.TotalDuplicates += b.DuplicateCount
	m.TotalFallbacks += b.FallbackCount
}

// Finalize stamps the end of the run.
func (m *RunMetadata) Finalize(end time.Time, status RunStatus) {
	m.CompletedAt = end.UTC()
	m.Status = status
}
