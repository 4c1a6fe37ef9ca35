package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

// NominatimConfig controls the geocoding client.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RPS is the client-side request budget. Nominatim's usage policy is
	// one request per second.
	RPS float64
}

// NominatimClient implements listing.Geocoder against a Nominatim-style
// search endpoint. All lookups are rate limited client-side.
type NominatimClient struct {
	cfg NominatimConfig
	hc  *http.Client
	rl  *rate.Limiter
}

// NewNominatimClient builds a client with policy-compliant defaults.
func NewNominatimClient(cfg NominatimConfig) *NominatimClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org/search"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "estate-crawler/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	return &NominatimClient{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
		rl:  rate.NewLimiter(rate.Limit(cfg.RPS), 1),
	}
}

type nominatimRow struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup queries the search endpoint. A miss or a rate-limit rejection by
// the provider returns (nil, err) and the caller moves to the next
// candidate; an empty result set returns (nil, nil).
func (c *NominatimClient) Lookup(ctx context.Context, query string) (*listing.GeoResult, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.cfg.BaseURL + "?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("geocode status %d", resp.StatusCode)
	}

	var rows []nominatimRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("geocode decode: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(rows[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode lat %q: %w", rows[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(rows[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode lon %q: %w", rows[0].Lon, err)
	}
	return &listing.GeoResult{Lat: lat, Lng: lng, Formatted: rows[0].DisplayName}, nil
}
