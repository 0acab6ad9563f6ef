package enrich

import (
	"errors"

	"github.com/fuelmap-ja/stations-cli/internal/model"
	"github.com/fuelmap-ja/stations-cli/internal/resilience"
)

// Merge combines a raw listing with its enrichment outcome into exactly
// one output record. On any failure the record degrades to fallback with
// the raw fields intact and a classified failure reason; no station is
// ever dropped.
func Merge(raw model.RawStation, enr *model.Enrichment, err error) model.EnrichedStation {
	if err != nil {
		return model.EnrichedStation{
			RawStation:    raw,
			Status:        model.StatusFallback,
			FailureReason: classifyFailure(err),
		}
	}
	return model.EnrichedStation{
		RawStation: raw,
		Status:     model.StatusEnriched,
		Enrichment: enr,
	}
}

// classifyFailure maps an error to a telemetry reason prefixed with its
// taxonomy class.
func classifyFailure(err error) string {
	var pe *ParseError
	switch {
	case errors.As(err, &pe):
		return "parse_error: " + pe.Reason
	case resilience.IsFatal(err):
		return "fatal_lookup_failure: " + err.Error()
	case resilience.IsTransient(err):
		return "transient_lookup_failure: " + err.Error()
	default:
		return "lookup_failure: " + err.Error()
	}
}
