package enrich

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fuelmap-ja/stations-cli/internal/model"
	"github.com/fuelmap-ja/stations-cli/pkg/places"
)

// --- Lookup client mock ---

type mockLookupClient struct {
	mock.Mock
}

func (m *mockLookupClient) TextSearch(ctx context.Context, query string) (*places.TextSearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*places.TextSearchResponse), args.Error(1)
}

// --- In-memory recorder ---

type memRecorder struct {
	created      *model.RunMetadata
	batches      []model.BatchTelemetry
	finalMeta    *model.RunMetadata
	finalRecords []model.EnrichedStation

	createErr error
	appendErr error
	finalErr  error
}

func (r *memRecorder) CreateRun(_ context.Context, meta *model.RunMetadata) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = meta
	return nil
}

func (r *memRecorder) AppendBatch(_ context.Context, _ string, batch model.BatchTelemetry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *memRecorder) FinalizeRun(_ context.Context, meta *model.RunMetadata, records []model.EnrichedStation) error {
	if r.finalErr != nil {
		return r.finalErr
	}
	r.finalMeta = meta
	r.finalRecords = records
	return nil
}

// singleCandidate builds a provider response with one complete candidate.
func singleCandidate(name string, lat, lng float64) *places.TextSearchResponse {
	return &places.TextSearchResponse{
		Places: []places.Place{
			{
				DisplayName:   places.DisplayName{Text: name},
				Location:      &places.LatLng{Latitude: lat, Longitude: lng},
				NationalPhone: "876-555-0123",
				OpeningHours: &places.OpeningHours{
					WeekdayDescriptions: fullWeek(),
				},
				Rating:          4.2,
				UserRatingCount: 87,
			},
		},
	}
}

func fullWeek() []string {
	return []string{
		"Monday: 7 AM–9 PM",
		"Tuesday: 7 AM–9 PM",
		"Wednesday: 7 AM–9 PM",
		"Thursday: 7 AM–9 PM",
		"Friday: 7 AM–10 PM",
		"Saturday: 8 AM–10 PM",
		"Sunday: 9 AM–6 PM",
	}
}
