// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores trials against a user profile with one language model
// call per trial.
package rank

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/internal/metrics"
	"github.com/pdiddy/trialmatch/pkg/types"
)

const (
	defaultConcurrency = 5
	defaultCallTimeout = 30 * time.Second
	defaultTemperature = 0.2
)

// Ranker fans ranking calls out with a bounded number in flight.
type Ranker struct {
	Model       llm.Completer
	Concurrency int
	CallTimeout time.Duration
	Temperature float64
	Log         *zap.Logger
}

// New builds a Ranker from configuration, filling defaults for unset values.
func New(model llm.Completer, cfg types.RankConfig, log *zap.Logger) *Ranker {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Ranker{
		Model:       model,
		Concurrency: cfg.Concurrency,
		CallTimeout: cfg.CallTimeout,
		Temperature: cfg.Temperature,
		Log:         log,
	}
	if r.Concurrency <= 0 {
		r.Concurrency = defaultConcurrency
	}
	if r.CallTimeout <= 0 {
		r.CallTimeout = defaultCallTimeout
	}
	if r.Temperature <= 0 {
		r.Temperature = defaultTemperature
	}
	return r
}

// Rank returns one RankedTrial per input trial, in input order. A failed
// call leaves that trial at the default score and explanation. When every
// call fails the error matches ErrUpstreamUnavailable. A cancelled ctx is
// returned as is.
func (r *Ranker) Rank(ctx context.Context, profile types.UserProfile, trials []types.TrialRecord) ([]types.RankedTrial, error) {
	out := make([]types.RankedTrial, len(trials))
	if len(trials) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency())

	var (
		mu      sync.Mutex
		failed  int
		lastErr error
	)

	for i, trial := range trials {
		g.Go(func() error {
			ranked, err := r.RankOne(gctx, profile, trial)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failed++
				lastErr = err
				mu.Unlock()
				r.log().Warn("ranking call failed",
					zap.String("trial", trial.ID), zap.Error(err))
				ranked = withDefaults(trial)
			}
			out[i] = ranked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed == len(trials) {
		return nil, fmt.Errorf("%w: all %d ranking calls failed: %v",
			errs.ErrUpstreamUnavailable, failed, lastErr)
	}
	return out, nil
}

// RankOne scores a single trial under the per-call timeout. Errors come
// only from the model call; an unusable reply is scored with defaults.
func (r *Ranker) RankOne(ctx context.Context, profile types.UserProfile, trial types.TrialRecord) (types.RankedTrial, error) {
	prompt, err := renderPrompt(profile, trial)
	if err != nil {
		return types.RankedTrial{}, fmt.Errorf("rendering prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout())
	defer cancel()

	reply, err := r.Model.Complete(callCtx, llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: llm.Temperature(r.Temperature),
		JSONMode:    true,
	})
	if err != nil {
		return types.RankedTrial{}, err
	}

	score, explanation := ParseRating(reply)
	metrics.RelevanceScore.Observe(float64(score))
	return types.RankedTrial{
		TrialRecord:          trial,
		RelevanceScore:       score,
		RelevanceExplanation: explanation,
	}, nil
}

func withDefaults(t types.TrialRecord) types.RankedTrial {
	return types.RankedTrial{
		TrialRecord:          t,
		RelevanceScore:       types.DefaultRelevanceScore,
		RelevanceExplanation: types.DefaultRelevanceExplanation,
	}
}

func (r *Ranker) concurrency() int {
	if r.Concurrency <= 0 {
		return defaultConcurrency
	}
	return r.Concurrency
}

func (r *Ranker) callTimeout() time.Duration {
	if r.CallTimeout <= 0 {
		return defaultCallTimeout
	}
	return r.CallTimeout
}

func (r *Ranker) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
