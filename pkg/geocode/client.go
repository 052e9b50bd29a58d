// Package geocode provides address geocoding via the Census Geocoder
// (primary) and Nominatim (fallback), with an optional persistent cache.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client geocodes addresses and reverse geocodes coordinates.
type Client interface {
	// Geocode geocodes a single address.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes multiple addresses.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)

	// Reverse converts a lat/lng to the nearest address.
	Reverse(ctx context.Context, lat, lng float64) (*ReverseResult, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	ID      string // Optional identifier for batch correlation
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "census", "nominatim", or "cache"
	Quality   string // "rooftop", "range", "approximate"
	Matched   bool
}

// ReverseResult holds the output of a reverse geocode operation.
type ReverseResult struct {
	DisplayName string `json:"display_name"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
}

// Cache persists geocode results between runs.
type Cache interface {
	Get(ctx context.Context, addressHash string) (*Result, error)
	Put(ctx context.Context, addressHash string, result *Result) error
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client for all provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit for provider calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithCache attaches a persistent result cache.
func WithCache(c Cache) Option {
	return func(g *geocoder) {
		g.cache = c
	}
}

// WithCensusURL overrides the Census Geocoder base URL.
func WithCensusURL(u string) Option {
	return func(g *geocoder) {
		g.censusBaseURL = u
	}
}

// WithNominatimURL overrides the Nominatim base URL. An empty URL disables
// the Nominatim fallback and reverse geocoding.
func WithNominatimURL(u string) Option {
	return func(g *geocoder) {
		g.nominatimBaseURL = u
	}
}

type geocoder struct {
	httpClient       *http.Client
	limiter          *rate.Limiter
	cache            Cache
	censusBaseURL    string
	nominatimBaseURL string
	userAgent        string
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		limiter:          rate.NewLimiter(10, 10),
		censusBaseURL:    "https://geocoding.geo.census.gov",
		nominatimBaseURL: "https://nominatim.openstreetmap.org",
		userAgent:        "geospython/1.0",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode geocodes a single address, trying the cache, then Census, then
// Nominatim. A provider answering "no match" is not an error; a transport
// or decode failure from every provider is.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	key := cacheKey(addr)
	if cached := g.checkCache(ctx, key); cached != nil {
		return cached, nil
	}

	result, censusErr := g.geocodeCensus(ctx, addr)
	if censusErr == nil && result.Matched {
		g.storeCache(ctx, key, result)
		return result, nil
	}

	answered := censusErr == nil
	if g.nominatimBaseURL != "" {
		nomResult, nomErr := g.geocodeNominatim(ctx, addr)
		if nomErr == nil {
			answered = true
			if nomResult.Matched {
				g.storeCache(ctx, key, nomResult)
				return nomResult, nil
			}
		}
	}

	// Only cache a miss when a provider actually said so. A transient
	// outage must not persist as a definitive non-match.
	if !answered {
		return nil, eris.Wrap(censusErr, "geocode: all providers failed")
	}

	miss := &Result{Matched: false}
	g.storeCache(ctx, key, miss)
	return miss, nil
}

// getJSON performs a rate-limited GET against a provider endpoint and
// decodes the JSON response into v.
func (g *geocoder) getJSON(ctx context.Context, reqURL, provider string, v any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return eris.Wrapf(err, "geocode: %s rate limit", provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s build request", provider)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s request", provider)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("geocode: %s returned status %d", provider, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "geocode: %s read body", provider)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return eris.Wrapf(err, "geocode: %s parse response", provider)
	}
	return nil
}

// BatchGeocode geocodes multiple addresses using the Census batch API,
// falling back to individual geocoding when the batch call fails.
func (g *geocoder) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	// Assign IDs for batch correlation if not set.
	for i := range addrs {
		if addrs[i].ID == "" {
			addrs[i].ID = fmt.Sprintf("%d", i)
		}
	}

	results, err := g.batchGeocodeCensus(ctx, addrs)
	if err != nil {
		results = make([]Result, len(addrs))
		for i, addr := range addrs {
			r, geocodeErr := g.Geocode(ctx, addr)
			if geocodeErr != nil {
				results[i] = Result{Matched: false}
				continue
			}
			results[i] = *r
		}
		return results, nil
	}

	// For unmatched Census results, try Nominatim individually.
	if g.nominatimBaseURL != "" {
		for i, r := range results {
			if !r.Matched {
				nomResult, nomErr := g.geocodeNominatim(ctx, addrs[i])
				if nomErr == nil && nomResult.Matched {
					results[i] = *nomResult
				}
			}
		}
	}

	return results, nil
}
