// Package enrich implements the station metadata enrichment pipeline:
// query building, response parsing, record merging, and batch orchestration
// over a rate-limited place-search provider.
package enrich

import "strings"

// BuildQuery turns one raw listing into the provider search string. Name
// and address hint are whitespace-collapsed and joined; when the address
// hint is empty the query is scoped to the configured region instead.
// Deterministic, no side effects, never fails.
func BuildQuery(name, addressHint, region string) string {
	parts := make([]string, 0, 3)
	if n := collapseSpace(name); n != "" {
		parts = append(parts, n)
	}
	if a := collapseSpace(addressHint); a != "" {
		parts = append(parts, a)
	}
	if r := collapseSpace(region); r != "" && !containsFold(parts, r) {
		parts = append(parts, r)
	}
	return strings.Join(parts, " ")
}

// collapseSpace trims and collapses runs of whitespace to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsFold(parts []string, s string) bool {
	for _, p := range parts {
		if strings.Contains(strings.ToLower(p), strings.ToLower(s)) {
			return true
		}
	}
	return false
}
