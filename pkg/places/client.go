// Package places is a client for the place-search provider used to enrich
// scraped station listings. All outbound requests share one rate-limiter
// clock, so lookups are serialized at the provider's documented rate
// regardless of how the caller batches its records.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/fuelmap-ja/stations-cli/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// baseFieldMask lists the response fields every lookup needs. Photo
// references are appended only when imagery capture is requested.
const baseFieldMask = "places.displayName,places.location,places.nationalPhoneNumber," +
	"places.internationalPhoneNumber,places.regularOpeningHours,places.rating,places.userRatingCount"

// Client performs place text-search lookups.
type Client interface {
	TextSearch(ctx context.Context, query string) (*TextSearchResponse, error)
}

// TextSearchResponse is the provider's response to a text search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place is one candidate result.
type Place struct {
	DisplayName        DisplayName   `json:"displayName"`
	Location           *LatLng       `json:"location,omitempty"`
	NationalPhone      string        `json:"nationalPhoneNumber,omitempty"`
	InternationalPhone string        `json:"internationalPhoneNumber,omitempty"`
	OpeningHours       *OpeningHours `json:"regularOpeningHours,omitempty"`
	Rating             float64       `json:"rating,omitempty"`
	UserRatingCount    int           `json:"userRatingCount,omitempty"`
	Photos             []Photo       `json:"photos,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// OpeningHours holds the weekly schedule as one description line per day.
type OpeningHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}

// Photo is a provider photo reference.
type Photo struct {
	Name string `json:"name"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMinInterval sets the minimum delay between consecutive outbound
// requests. The limiter is owned by this client value, not shared package
// state, so concurrent runs cannot interfere with each other.
func WithMinInterval(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithRetry overrides the retry configuration for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithPhotos requests photo references in each lookup.
func WithPhotos(enabled bool) Option {
	return func(c *httpClient) {
		c.includePhotos = enabled
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	http          *http.Client
	limiter       *rate.Limiter
	retry         resilience.RetryConfig
	includePhotos bool
}

// NewClient creates a place-search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(1100*time.Millisecond), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("places", "text_search")
	return c
}

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
}

// TextSearch issues one rate-limited lookup, retrying transient failures
// with backoff. Fatal failures (4xx other than 429) surface immediately.
func (c *httpClient) TextSearch(ctx context.Context, query string) (*TextSearchResponse, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*TextSearchResponse, error) {
		return c.doSearch(ctx, query)
	})
}

// doSearch is a single attempt. Every attempt, retry or not, waits on the
// shared limiter first: each outbound call advances the rate-limit clock.
func (c *httpClient) doSearch(ctx context.Context, query string) (*TextSearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "places: rate limit wait")
	}

	body, err := json.Marshal(textSearchRequest{TextQuery: query})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", c.fieldMask())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, resilience.NewFatalError(err, resp.StatusCode)
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) fieldMask() string {
	if c.includePhotos {
		return strings.Join([]string{baseFieldMask, "places.photos"}, ",")
	}
	return baseFieldMask
}
