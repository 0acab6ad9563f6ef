// Package model defines the domain types shared across the enrichment pipeline.
package model

// RawStation is a station listing as produced by the upstream scrape step.
// It is immutable input: the pipeline never mutates raw fields, only copies
// them forward into enriched records.
type RawStation struct {
	Name string `json:"name"`
	// AddressHint is the free-text location from the source listing. Often
	// empty or partial; used only to sharpen the search query.
	AddressHint string `json:"address,omitempty"`
	// Prices carries the source listing's fuel price data untouched. The
	// pipeline does not interpret it.
	Prices map[string]string `json:"prices,omitempty"`
}

// EnrichmentStatus tags how an output record was produced.
type EnrichmentStatus string

const (
	// StatusEnriched means the provider lookup succeeded and validated
	// metadata is attached.
	StatusEnriched EnrichmentStatus = "enriched"
	// StatusFallback means enrichment failed; the record carries raw
	// fields only plus a failure reason.
	StatusFallback EnrichmentStatus = "fallback"
)

// OpeningHours is one day's opening hours as reported by the provider.
type OpeningHours struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
}

// Enrichment holds the validated metadata extracted from a provider
// response. All fields are optional; Latitude and Longitude are always
// both set or both nil.
type Enrichment struct {
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	Hours       []OpeningHours `json:"hours,omitempty"`
	Rating      float64        `json:"rating,omitempty"`
	ReviewCount int            `json:"review_count,omitempty"`
	// ThumbnailRef is a provider photo reference, populated only when
	// imagery capture was requested for the run.
	ThumbnailRef string `json:"thumbnail_ref,omitempty"`
}

// HasCoordinates reports whether a validated coordinate pair is attached.
func (e *Enrichment) HasCoordinates() bool {
	return e != nil && e.Latitude != nil && e.Longitude != nil
}

// EnrichedStation is the pipeline's output record: the raw listing plus,
// on success, validated provider metadata.
type EnrichedStation struct {
	RawStation
	Status     EnrichmentStatus `json:"enrichment_status"`
	Enrichment *Enrichment      `json:"enrichment,omitempty"`
	// FailureReason is set only on fallback records.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Bounds is the geographic bounding box coordinates must fall inside to be
// accepted. Defaults cover Jamaica.
type Bounds struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLng float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLng float64 `yaml:"max_lng" mapstructure:"max_lng"`
}

// Contains reports whether the point lies inside the box (inclusive).
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}
