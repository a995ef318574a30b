// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the prometheus collectors for the pipeline and the
// HTTP API. Collectors live on a private registry served at /metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdiddy/trialmatch/internal/errs"
)

// Registry is the collector registry exposed by Handler.
var Registry = prometheus.NewRegistry()

var (
	// SearchesTotal counts orchestrated searches by outcome
	// ("ranked", "unranked", "failed").
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trialmatch_searches_total",
			Help: "Searches processed by the orchestrator, by outcome",
		},
		[]string{"outcome"},
	)

	// StageDegraded counts optional stages that were skipped after a failure.
	StageDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trialmatch_stage_degraded_total",
			Help: "Optional pipeline stages skipped after a failure",
		},
		[]string{"stage"},
	)

	// UpstreamDuration tracks third-party call latency.
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trialmatch_upstream_request_duration_seconds",
			Help:    "Latency of calls to the registry, geocoder, and language model",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	// RelevanceScore records the distribution of ranker scores.
	RelevanceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trialmatch_relevance_score",
			Help:    "Relevance scores produced by the ranker",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// HTTPRequests counts API requests by route and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trialmatch_http_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"route", "status"},
	)
)

func init() {
	Registry.MustRegister(SearchesTotal, StageDegraded, UpstreamDuration, RelevanceScore, HTTPRequests)
}

// ObserveUpstream records the latency of one upstream call that started at
// start and finished with err.
func ObserveUpstream(service string, start time.Time, err error) {
	UpstreamDuration.WithLabelValues(service, outcome(err)).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		return "unavailable"
	case errors.Is(err, errs.ErrParseFailure):
		return "parse_failure"
	default:
		return "error"
	}
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
