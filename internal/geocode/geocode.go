// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package geocode resolves free-text locations to coordinates through the
// OpenCage geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/httputil"
	"github.com/pdiddy/trialmatch/internal/metrics"
	"github.com/pdiddy/trialmatch/pkg/types"
)

// openCageBase is the default geocoding endpoint. Declared as a var so
// tests can substitute an httptest server.
var openCageBase = "https://api.opencagedata.com/geocode/v1/json"

const serviceName = "geocoder"

// Geocoder resolves a location string to a point.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (types.GeoPoint, error)
}

// OpenCageClient implements Geocoder against OpenCage. It performs no
// retries; callers decide whether a failure is fatal.
type OpenCageClient struct {
	Client    *http.Client
	APIKey    string
	BaseURL   string
	UserAgent string
}

// NewOpenCageClient builds a client from configuration. The HTTP timeout
// bounds each lookup.
func NewOpenCageClient(cfg types.GeocodeConfig) *OpenCageClient {
	return &OpenCageClient{
		Client:    &http.Client{Timeout: cfg.Timeout},
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
	}
}

// Geocode returns the coordinates of the first match for location.
// It fails with ErrInvalidInput for an empty location, ErrLocationNotFound
// when there is no match, and an *errs.UpstreamError otherwise.
func (c *OpenCageClient) Geocode(ctx context.Context, location string) (pt types.GeoPoint, err error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return types.GeoPoint{}, errs.Invalid("location", "must not be empty")
	}

	start := time.Now()
	defer func() { metrics.ObserveUpstream(serviceName, start, err) }()

	base := c.BaseURL
	if base == "" {
		base = openCageBase
	}
	params := url.Values{
		"q":     {location},
		"key":   {c.APIKey},
		"limit": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return types.GeoPoint{}, errs.Transport(serviceName, err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return types.GeoPoint{}, errs.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.GeoPoint{}, errs.Upstream(serviceName, resp.StatusCode, httputil.ReadLimited(resp.Body, 4096))
	}

	var gr geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return types.GeoPoint{}, errs.Parse("geocoder response", err)
	}
	if len(gr.Results) == 0 {
		return types.GeoPoint{}, errs.ErrLocationNotFound
	}

	g := gr.Results[0].Geometry
	return types.GeoPoint{Latitude: g.Lat, Longitude: g.Lng}, nil
}

// OpenCage API JSON structures.
type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Geometry geocodeGeometry `json:"geometry"`
}

type geocodeGeometry struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
