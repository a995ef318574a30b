// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the trialmatch pipeline:
// search criteria, normalized registry records, ranked results, user
// profiles, and the configuration of every stage.
package types

import "strings"

// Fallback display strings substituted when the registry omits a field.
// Projection and presentation use these constants only.
const (
	FallbackTitle       = "No title provided"
	FallbackStatus      = "Unknown status"
	FallbackPhase       = "Unknown phase"
	FallbackCondition   = "No condition provided"
	FallbackLocation    = "Location not provided"
	FallbackLastUpdated = "Unknown"
	FallbackDescription = "No description provided."
)

// Defaults applied by the relevance ranker when the model output is unusable.
const (
	DefaultRelevanceScore       = 1
	DefaultRelevanceExplanation = "No explanation provided."
	MinRelevanceScore           = 1
	MaxRelevanceScore           = 10
)

// SearchCriteria holds the user's search input for one request. Every field
// is optional; an empty criteria set asks the registry for its most recently
// updated studies.
type SearchCriteria struct {
	// Keyword is free text, possibly rewritten by the query enhancer.
	Keyword string `json:"keyword,omitempty" yaml:"keyword,omitempty"`

	// Phase is a registry phase term (e.g. "PHASE2").
	Phase string `json:"phase,omitempty" yaml:"phase,omitempty"`

	// Status is a registry recruitment status (e.g. "RECRUITING").
	Status string `json:"status,omitempty" yaml:"status,omitempty"`

	// Location is a free-text place resolved by the geocoder.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// Distance is a radius with an optional unit suffix ("50mi", "80km").
	Distance string `json:"distance,omitempty" yaml:"distance,omitempty"`

	// PageSize limits the number of studies in one registry page.
	PageSize int `json:"page_size,omitempty" yaml:"page_size,omitempty"`

	// PageToken continues a previous search at its next page.
	PageToken string `json:"page_token,omitempty" yaml:"page_token,omitempty"`
}

// IsEmpty reports whether no keyword, phase, status, location, or distance
// was supplied. Paging fields do not count.
func (c SearchCriteria) IsEmpty() bool {
	return strings.TrimSpace(c.Keyword) == "" &&
		strings.TrimSpace(c.Phase) == "" &&
		strings.TrimSpace(c.Status) == "" &&
		strings.TrimSpace(c.Location) == "" &&
		strings.TrimSpace(c.Distance) == ""
}

// HasGeo reports whether both location and distance were supplied.
func (c SearchCriteria) HasGeo() bool {
	return strings.TrimSpace(c.Location) != "" && strings.TrimSpace(c.Distance) != ""
}

// GeoPoint is a resolved coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"lat" yaml:"lat"`
	Longitude float64 `json:"lng" yaml:"lng"`
}

// DistanceUnit is the unit of a geo-distance radius.
type DistanceUnit string

const (
	Miles      DistanceUnit = "mi"
	Kilometers DistanceUnit = "km"
)

// Distance is a parsed search radius.
type Distance struct {
	Radius float64      `json:"radius" yaml:"radius"`
	Unit   DistanceUnit `json:"unit" yaml:"unit"`
}

// TrialRecord is a study projected out of the registry response into the
// fields the application displays. Missing optional fields hold the
// Fallback* constants, never the empty string.
type TrialRecord struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Status      string `json:"status" yaml:"status"`
	Phase       string `json:"phase" yaml:"phase"`
	Condition   string `json:"condition" yaml:"condition"`
	Location    string `json:"location" yaml:"location"`
	LastUpdated string `json:"lastUpdated" yaml:"last_updated"`
	Description string `json:"description" yaml:"description"`
	URL         string `json:"url" yaml:"url"`
}

// RankedTrial is a TrialRecord annotated with a model-produced relevance
// score. Unranked results leave the score fields zero.
type RankedTrial struct {
	TrialRecord `yaml:",inline"`

	RelevanceScore       int    `json:"relevanceScore,omitempty" yaml:"relevance_score,omitempty"`
	RelevanceExplanation string `json:"relevanceExplanation,omitempty" yaml:"relevance_explanation,omitempty"`
}

// Unranked wraps trials without scores, preserving order.
func Unranked(trials []TrialRecord) []RankedTrial {
	out := make([]RankedTrial, len(trials))
	for i, t := range trials {
		out[i] = RankedTrial{TrialRecord: t}
	}
	return out
}
