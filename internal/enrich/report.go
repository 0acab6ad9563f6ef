package enrich

import (
	"fmt"
	"strings"

	"github.com/fuelmap-ja/stations-cli/internal/model"
)

// FormatReport generates a human-readable run report for operators.
func FormatReport(meta *model.RunMetadata) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Enrichment Run: %s\n", meta.RunID)
	fmt.Fprintf(&b, "Started:   %s\n", meta.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Completed: %s\n", meta.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Status:    %s\n\n", meta.Status)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Records processed: %d\n", meta.TotalRecords)
	fmt.Fprintf(&b, "- Enriched: %d\n", meta.TotalRecords-meta.TotalFallbacks)
	fmt.Fprintf(&b, "- Fallbacks: %d\n", meta.TotalFallbacks)
	fmt.Fprintf(&b, "- Duplicates removed: %d\n", meta.TotalDuplicates)
	fmt.Fprintf(&b, "- Imagery capture: %v\n\n", meta.PhotosRequested)

	b.WriteString("## Batches\n")
	if len(meta.Batches) == 0 {
		b.WriteString("No batches processed.\n")
	}
	for _, batch := range meta.Batches {
		fmt.Fprintf(&b, "- batch %d: %d records, %d ok, %d fallback (%dms)\n",
			batch.BatchIndex, batch.RecordCount, batch.SuccessCount,
			batch.FallbackCount, batch.Elapsed.Milliseconds())
		for _, reason := range batch.FailureReasons {
			fmt.Fprintf(&b, "  - %s\n", reason)
		}
	}

	return b.String()
}
