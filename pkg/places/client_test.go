package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuelmap-ja/stations-cli/internal/resilience"
)

// fastRetry keeps backoff negligible in tests.
func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func testResponse() TextSearchResponse {
	return TextSearchResponse{
		Places: []Place{
			{
				DisplayName:   DisplayName{Text: "Texaco Spanish Town"},
				Location:      &LatLng{Latitude: 17.99, Longitude: -76.95},
				NationalPhone: "876-555-0123",
				OpeningHours: &OpeningHours{WeekdayDescriptions: []string{
					"Monday: 7 AM–9 PM", "Tuesday: 7 AM–9 PM", "Wednesday: 7 AM–9 PM",
					"Thursday: 7 AM–9 PM", "Friday: 7 AM–10 PM", "Saturday: 8 AM–10 PM",
					"Sunday: 9 AM–6 PM",
				}},
				Rating:          4.2,
				UserRatingCount: 87,
			},
		},
	}
}

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.location")
		assert.NotContains(t, r.Header.Get("X-Goog-FieldMask"), "places.photos")

		var body textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Texaco Spanish Town Main St Jamaica", body.TextQuery)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testResponse())
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithMinInterval(time.Millisecond))
	resp, err := client.TextSearch(context.Background(), "Texaco Spanish Town Main St Jamaica")

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Texaco Spanish Town", resp.Places[0].DisplayName.Text)
	require.NotNil(t, resp.Places[0].Location)
	assert.InDelta(t, 17.99, resp.Places[0].Location.Latitude, 0.0001)
	assert.Equal(t, 87, resp.Places[0].UserRatingCount)
}

func TestTextSearch_PhotosFieldMask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.photos")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testResponse())
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithMinInterval(time.Millisecond), WithPhotos(true))
	_, err := client.TextSearch(context.Background(), "query")
	require.NoError(t, err)
}

func TestTextSearch_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testResponse())
	}))
	defer srv.Close()

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithMinInterval(time.Millisecond),
		WithRetry(fastRetry(3)),
	)

	resp, err := client.TextSearch(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, resp.Places, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTextSearch_ExhaustedRetriesSurfaceTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithMinInterval(time.Millisecond),
		WithRetry(fastRetry(3)),
	)

	_, err := client.TextSearch(context.Background(), "query")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestTextSearch_FatalNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithMinInterval(time.Millisecond),
		WithRetry(fastRetry(3)),
	)

	_, err := client.TextSearch(context.Background(), "query")
	require.Error(t, err)
	assert.True(t, resilience.IsFatal(err))
	assert.False(t, resilience.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load(), "fatal errors must not be retried")
}

func TestTextSearch_RateLimitSpacing(t *testing.T) {
	var arrivals []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		arrivals = append(arrivals, time.Now())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testResponse())
	}))
	defer srv.Close()

	const interval = 60 * time.Millisecond
	client := NewClient("test-key", WithBaseURL(srv.URL), WithMinInterval(interval))

	// Sequential lookups, as the orchestrator issues them.
	for i := 0; i < 3; i++ {
		_, err := client.TextSearch(context.Background(), "query")
		require.NoError(t, err)
	}

	require.Len(t, arrivals, 3)
	for i := 1; i < len(arrivals); i++ {
		gap := arrivals[i].Sub(arrivals[i-1])
		// Small tolerance for timer scheduling.
		assert.GreaterOrEqual(t, gap, interval-10*time.Millisecond,
			"consecutive lookups must respect the minimum delay")
	}
}

func TestNewClient_TimeoutOption(t *testing.T) {
	c := NewClient("test-key", WithTimeout(3*time.Second)).(*httpClient)
	assert.Equal(t, 3*time.Second, c.http.Timeout)

	// Non-positive values keep the default.
	def := NewClient("test-key", WithTimeout(0)).(*httpClient)
	assert.Equal(t, 15*time.Second, def.http.Timeout)
}

func TestTextSearch_SlowProviderTimesOutAsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithMinInterval(time.Millisecond),
		WithTimeout(50*time.Millisecond),
		WithRetry(fastRetry(1)),
	)

	start := time.Now()
	_, err := client.TextSearch(context.Background(), "query")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err), "client timeout must classify as transient")
	assert.Less(t, time.Since(start), 5*time.Second, "configured timeout must bound the request")
}

func TestTextSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithMinInterval(time.Millisecond))
	_, err := client.TextSearch(ctx, "query")
	assert.Error(t, err)
}
