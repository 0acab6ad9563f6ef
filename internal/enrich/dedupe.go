package enrich

import (
	"strings"

	"github.com/fuelmap-ja/stations-cli/internal/model"
)

// NormalizeName standardizes a station name for duplicate detection:
// lowercased, trimmed, runs of whitespace collapsed.
func NormalizeName(name string) string {
	return strings.ToLower(collapseSpace(name))
}

// Dedupe removes duplicate listings by normalized name, keeping the first
// occurrence. The second return value is aligned with the kept slice and
// holds, per survivor, how many later duplicates were folded into it.
func Dedupe(records []model.RawStation) ([]model.RawStation, []int) {
	kept := make([]model.RawStation, 0, len(records))
	dupCounts := make([]int, 0, len(records))
	seen := make(map[string]int, len(records))

	for _, r := range records {
		key := NormalizeName(r.Name)
		if idx, ok := seen[key]; ok {
			dupCounts[idx]++
			continue
		}
		seen[key] = len(kept)
		kept = append(kept, r)
		dupCounts = append(dupCounts, 0)
	}

	return kept, dupCounts
}
