// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry queries the ClinicalTrials.gov v2 studies API and
// projects its nested study records onto flat trial records.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/geocode"
	"github.com/pdiddy/trialmatch/internal/httputil"
	"github.com/pdiddy/trialmatch/internal/metrics"
	"github.com/pdiddy/trialmatch/pkg/types"
)

// studiesBase is the registry studies endpoint. Declared as a var so tests
// can substitute an httptest server.
var studiesBase = "https://clinicaltrials.gov/api/v2/studies"

const (
	serviceName     = "registry"
	defaultPageSize = 10
	maxErrorBody    = 4096
)

var nctIDPattern = regexp.MustCompile(`^NCT\d{8}$`)

// Result is one page of registry studies.
type Result struct {
	Studies       []Study
	NextPageToken string

	// GeoApplied reports whether the distance filter was sent.
	GeoApplied bool

	// Warnings lists non-fatal problems, such as a skipped geo filter.
	Warnings []string
}

// Client queries the registry. Geocoder resolves the search location when
// both location and distance are set; when it is nil the geo filter is
// never applied.
type Client struct {
	HTTP       *http.Client
	Geocoder   geocode.Geocoder
	BaseURL    string
	UserAgent  string
	PageSize   int
	MaxRetries int

	// StrictGeo fails the search when the geo filter cannot be built.
	// Otherwise the search proceeds unfiltered with a warning.
	StrictGeo bool
}

// NewClient builds a registry client from configuration.
func NewClient(cfg types.RegistryConfig, gc geocode.Geocoder, strictGeo bool) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		Geocoder:   gc,
		BaseURL:    cfg.BaseURL,
		UserAgent:  cfg.UserAgent,
		PageSize:   cfg.PageSize,
		MaxRetries: cfg.MaxRetries,
		StrictGeo:  strictGeo,
	}
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return studiesBase
}

func (c *Client) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return defaultPageSize
}

// Search fetches one page of studies matching criteria.
func (c *Client) Search(ctx context.Context, criteria types.SearchCriteria) (Result, error) {
	var res Result

	geo, err := c.resolveGeo(ctx, criteria)
	if err != nil {
		if c.StrictGeo {
			return Result{}, fmt.Errorf("geo filter: %w", err)
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("distance filter skipped: %v", err))
	}
	res.GeoApplied = geo != nil

	params := BuildParams(criteria, geo, c.pageSize())

	var env studiesResponse
	if err := c.get(ctx, c.base()+"?"+params.Encode(), nil, &env); err != nil {
		return Result{}, err
	}

	res.Studies = env.Studies
	if res.Studies == nil {
		res.Studies = []Study{}
	}
	res.NextPageToken = env.NextPageToken
	return res, nil
}

// resolveGeo returns the geo filter for criteria, or nil when criteria do
// not ask for one.
func (c *Client) resolveGeo(ctx context.Context, criteria types.SearchCriteria) (*GeoFilter, error) {
	if !criteria.HasGeo() {
		return nil, nil
	}
	if c.Geocoder == nil {
		return nil, fmt.Errorf("%w: no geocoder configured", errs.ErrUpstreamUnavailable)
	}
	dist, err := ParseDistance(criteria.Distance)
	if err != nil {
		return nil, err
	}
	pt, err := c.Geocoder.Geocode(ctx, criteria.Location)
	if err != nil {
		return nil, err
	}
	return &GeoFilter{Point: pt, Distance: dist}, nil
}

// GetStudy fetches a single study by NCT id.
func (c *Client) GetStudy(ctx context.Context, nctID string) (Study, error) {
	id := strings.ToUpper(strings.TrimSpace(nctID))
	if !nctIDPattern.MatchString(id) {
		return Study{}, errs.Invalid("nct id", "%q is not of the form NCT########", nctID)
	}

	var s Study
	notFound := fmt.Errorf("%w: %s", errs.ErrTrialNotFound, id)
	if err := c.get(ctx, c.base()+"/"+url.PathEscape(id)+"?format=json", notFound, &s); err != nil {
		return Study{}, err
	}
	return s, nil
}

// get performs a GET with 429 retries and decodes the JSON body into out.
// A 404 returns notFound when it is non-nil.
func (c *Client) get(ctx context.Context, reqURL string, notFound error, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(serviceName, start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && notFound != nil:
		return notFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errs.Upstream(serviceName, resp.StatusCode, httputil.ReadLimited(resp.Body, maxErrorBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Parse("registry response", err)
	}
	return nil
}

// ClinicalTrials.gov studies envelope.
type studiesResponse struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}
