// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search runs the trial search pipeline: optional query enhancement,
// the registry fetch with its geo filter, projection, and optional
// relevance ranking against the user's profile.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/metrics"
	"github.com/pdiddy/trialmatch/internal/registry"
	"github.com/pdiddy/trialmatch/pkg/types"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultEnhanceTimeout = 10 * time.Second
)

// Fetcher returns one page of raw registry studies.
type Fetcher interface {
	Search(ctx context.Context, criteria types.SearchCriteria) (registry.Result, error)
}

// QueryEnhancer rewrites a keyword. It must return the input on failure.
type QueryEnhancer interface {
	Enhance(ctx context.Context, query, profile string) string
}

// Ranker scores trials against a profile, one result per trial in order.
type Ranker interface {
	Rank(ctx context.Context, profile types.UserProfile, trials []types.TrialRecord) ([]types.RankedTrial, error)
}

// ProfileSource looks up stored profiles. Get returns an error matching
// errs.ErrProfileNotFound when the user has none.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (types.UserProfile, error)
}

// Request is one search.
type Request struct {
	Criteria types.SearchCriteria

	// Enhanced runs the keyword through the query enhancer first.
	Enhanced bool

	// Profile, when set, is used for enhancement and ranking. Otherwise
	// the profile of UserID is looked up.
	Profile *types.UserProfile
	UserID  string
}

// Output is the result of one search.
type Output struct {
	Trials []types.RankedTrial `json:"trials"`

	// Query is the keyword sent to the registry, after enhancement.
	Query string `json:"query"`

	Enhanced      bool     `json:"enhanced"`
	Ranked        bool     `json:"ranked"`
	GeoFiltered   bool     `json:"geoFiltered"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Orchestrator wires the pipeline stages. Fetcher is required; Enhancer,
// Ranker, and Profiles are optional and their stages are skipped when nil.
type Orchestrator struct {
	Fetcher  Fetcher
	Enhancer QueryEnhancer
	Ranker   Ranker
	Profiles ProfileSource

	// Timeout bounds the whole search (default 60s).
	Timeout time.Duration

	// EnhanceTimeout bounds the enhancer (default 10s), and never exceeds
	// half of the time left in the search.
	EnhanceTimeout time.Duration

	Log *zap.Logger
}

// Search runs the pipeline. Only the fetch is fatal; an error from it is
// returned wrapped as "search failed: ...". Enhancement, profile lookup,
// and ranking degrade to the unenhanced or unranked result with a warning.
func (o *Orchestrator) Search(ctx context.Context, req Request) (Output, error) {
	if o.Fetcher == nil {
		return Output{}, errors.New("search failed: no registry configured")
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out Output
	profile := o.resolveProfile(ctx, req, &out)

	criteria := req.Criteria
	if req.Enhanced && o.Enhancer != nil && strings.TrimSpace(criteria.Keyword) != "" {
		summary := ""
		if profile != nil {
			summary = profile.Summary()
		}
		criteria.Keyword = o.enhance(ctx, criteria.Keyword, summary, &out)
		out.Enhanced = criteria.Keyword != req.Criteria.Keyword
	}
	out.Query = criteria.Keyword

	res, err := o.Fetcher.Search(ctx, criteria)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("failed").Inc()
		return Output{}, fmt.Errorf("search failed: %w", err)
	}
	for _, w := range res.Warnings {
		o.degraded("geo", errors.New(w))
		out.Warnings = append(out.Warnings, w)
	}
	out.GeoFiltered = res.GeoApplied
	out.NextPageToken = res.NextPageToken

	records := registry.ProjectAll(res.Studies)
	out.Trials = types.Unranked(records)

	if profile != nil && !profile.IsBlank() && o.Ranker != nil && len(records) > 0 {
		ranked, err := o.Ranker.Rank(ctx, *profile, records)
		if err != nil {
			o.degraded("rank", err)
			out.Warnings = append(out.Warnings, fmt.Sprintf("ranking skipped: %v", err))
		} else {
			out.Trials = ranked
			out.Ranked = true
		}
	}

	outcome := "unranked"
	if out.Ranked {
		outcome = "ranked"
	}
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	return out, nil
}

// enhance runs the enhancer under its own deadline and gives up on it when
// the deadline passes, so a stalled model leaves the fetch its budget.
func (o *Orchestrator) enhance(ctx context.Context, query, profile string, out *Output) string {
	budget := o.EnhanceTimeout
	if budget <= 0 {
		budget = defaultEnhanceTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if half := time.Until(dl) / 2; half < budget {
			budget = half
		}
	}
	ectx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan string, 1)
	go func() { done <- o.Enhancer.Enhance(ectx, query, profile) }()

	result := query
	select {
	case result = <-done:
	case <-ectx.Done():
	}
	if result == query && ectx.Err() != nil {
		o.degraded("enhance", ectx.Err())
		out.Warnings = append(out.Warnings, fmt.Sprintf("query enhancement skipped: %v", ectx.Err()))
	}
	return result
}

// resolveProfile returns the profile to rank against, or nil.
func (o *Orchestrator) resolveProfile(ctx context.Context, req Request, out *Output) *types.UserProfile {
	if req.Profile != nil {
		return req.Profile
	}
	if req.UserID == "" || o.Profiles == nil {
		return nil
	}
	p, err := o.Profiles.Get(ctx, req.UserID)
	switch {
	case err == nil:
		return &p
	case errors.Is(err, errs.ErrProfileNotFound):
		return nil
	default:
		o.degraded("profile", err)
		out.Warnings = append(out.Warnings, fmt.Sprintf("profile unavailable: %v", err))
		return nil
	}
}

func (o *Orchestrator) degraded(stage string, err error) {
	metrics.StageDegraded.WithLabelValues(stage).Inc()
	if o.Log != nil {
		o.Log.Warn("search stage degraded", zap.String("stage", stage), zap.Error(err))
	}
}
