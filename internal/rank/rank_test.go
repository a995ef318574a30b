// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/pkg/types"
)

// scriptedModel answers each prompt by looking up the trial title it
// contains. Missing titles fail with an upstream error.
type scriptedModel struct {
	mu       sync.Mutex
	replies  map[string]string
	requests []llm.Request
	delay    func() time.Duration

	inFlight, maxInFlight atomic.Int32
}

func (m *scriptedModel) Complete(ctx context.Context, req llm.Request) (string, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.delay != nil {
		select {
		case <-time.After(m.delay()):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	prompt := req.Messages[len(req.Messages)-1].Content
	for title, reply := range m.replies {
		if strings.Contains(prompt, "Title: "+title+"\n") {
			return reply, nil
		}
	}
	return "", errs.Upstream("openai", 500, []byte("no reply scripted"))
}

func trials(n int) []types.TrialRecord {
	out := make([]types.TrialRecord, n)
	for i := range out {
		out[i] = types.TrialRecord{ID: fmt.Sprintf("NCT%08d", i), Title: fmt.Sprintf("Trial %d", i)}
	}
	return out
}

var testProfile = types.UserProfile{
	Conditions:             "asthma",
	PriorTreatments:        "albuterol",
	Outcomes:               "partial relief",
	SideEffects:            "tremor",
	DiscontinuationReasons: "cost",
}

func TestRankPreservesOrderAndCount(t *testing.T) {
	in := trials(12)
	replies := map[string]string{}
	for i, tr := range in {
		replies[tr.Title] = fmt.Sprintf(`{"rating": %d, "explanation": "fit %d"}`, i%10+1, i)
	}
	m := &scriptedModel{
		replies: replies,
		delay:   func() time.Duration { return time.Duration(rand.Intn(5)) * time.Millisecond },
	}

	out, err := New(m, types.RankConfig{Concurrency: 4}, nil).Rank(context.Background(), testProfile, in)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i, r := range out {
		assert.Equal(t, in[i], r.TrialRecord, "position %d", i)
		assert.Equal(t, i%10+1, r.RelevanceScore)
		assert.Equal(t, fmt.Sprintf("fit %d", i), r.RelevanceExplanation)
	}
	assert.LessOrEqual(t, m.maxInFlight.Load(), int32(4))
}

func TestRankEmpty(t *testing.T) {
	out, err := New(&scriptedModel{}, types.RankConfig{}, nil).Rank(context.Background(), testProfile, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRankPartialFailureDegradesTrial(t *testing.T) {
	in := trials(3)
	m := &scriptedModel{replies: map[string]string{
		"Trial 0": `{"rating": 8, "explanation": "good"}`,
		"Trial 2": `{"rating": 3, "explanation": "weak"}`,
	}}

	out, err := New(m, types.RankConfig{}, nil).Rank(context.Background(), testProfile, in)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 8, out[0].RelevanceScore)
	assert.Equal(t, types.DefaultRelevanceScore, out[1].RelevanceScore)
	assert.Equal(t, types.DefaultRelevanceExplanation, out[1].RelevanceExplanation)
	assert.Equal(t, 3, out[2].RelevanceScore)
}

func TestRankAllFailuresReportsUpstream(t *testing.T) {
	out, err := New(&scriptedModel{}, types.RankConfig{}, nil).Rank(context.Background(), testProfile, trials(3))
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, errs.ErrUpstreamUnavailable), "got %v", err)
}

func TestRankCancelledContext(t *testing.T) {
	m := &scriptedModel{delay: func() time.Duration { return time.Second }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(m, types.RankConfig{}, nil).Rank(ctx, testProfile, trials(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankPerCallTimeout(t *testing.T) {
	in := trials(2)
	m := &scriptedModel{
		replies: map[string]string{"Trial 0": `{"rating": 7, "explanation": "ok"}`, "Trial 1": `{"rating": 9}`},
		delay: func() time.Duration { return 0 },
	}
	slow := &slowFor{Completer: m, title: "Trial 1"}

	out, err := New(slow, types.RankConfig{CallTimeout: 20 * time.Millisecond}, nil).Rank(context.Background(), testProfile, in)
	require.NoError(t, err)
	assert.Equal(t, 7, out[0].RelevanceScore)
	assert.Equal(t, types.DefaultRelevanceScore, out[1].RelevanceScore)
}

// slowFor blocks until the call context ends for prompts naming title.
type slowFor struct {
	llm.Completer
	title string
}

func (s *slowFor) Complete(ctx context.Context, req llm.Request) (string, error) {
	if strings.Contains(req.Messages[0].Content, "Title: "+s.title+"\n") {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.Completer.Complete(ctx, req)
}

func TestRankOneRequest(t *testing.T) {
	tr := types.TrialRecord{Title: "Inhaler Study", Description: "Tests a new inhaler.", Phase: "PHASE2", Location: "Boston"}
	m := &scriptedModel{replies: map[string]string{"Inhaler Study": `{"rating": 6, "explanation": "maybe"}`}}

	got, err := New(m, types.RankConfig{}, nil).RankOne(context.Background(), testProfile, tr)
	require.NoError(t, err)
	assert.Equal(t, 6, got.RelevanceScore)

	require.Len(t, m.requests, 1)
	req := m.requests[0]
	assert.True(t, req.JSONMode)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-9)

	prompt := req.Messages[0].Content
	for _, want := range []string{
		"Conditions: asthma", "Past Treatments: albuterol", "Outcomes: partial relief",
		"Side Effects: tremor", "Discontinuation Reasons: cost",
		"Title: Inhaler Study", "Description: Tests a new inhaler.", "Phase: PHASE2", "Location: Boston",
	} {
		assert.Contains(t, prompt, want)
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantScore int
		wantExpl  string
	}{
		{name: "well formed", raw: `{"rating": 7, "explanation": "good fit"}`, wantScore: 7, wantExpl: "good fit"},
		{name: "not json", raw: `Rating: 7. Seems good.`, wantScore: 1, wantExpl: types.DefaultRelevanceExplanation},
		{name: "empty", raw: ``, wantScore: 1, wantExpl: types.DefaultRelevanceExplanation},
		{name: "missing rating", raw: `{"explanation": "unclear"}`, wantScore: 1, wantExpl: "unclear"},
		{name: "null rating", raw: `{"rating": null, "explanation": "x"}`, wantScore: 1, wantExpl: "x"},
		{name: "string rating", raw: `{"rating": "8", "explanation": "x"}`, wantScore: 8, wantExpl: "x"},
		{name: "word rating", raw: `{"rating": "high", "explanation": "x"}`, wantScore: 1, wantExpl: "x"},
		{name: "fractional rounds", raw: `{"rating": 6.5, "explanation": "x"}`, wantScore: 7, wantExpl: "x"},
		{name: "above range", raw: `{"rating": 11, "explanation": "x"}`, wantScore: 1, wantExpl: "x"},
		{name: "below range", raw: `{"rating": 0, "explanation": "x"}`, wantScore: 1, wantExpl: "x"},
		{name: "negative", raw: `{"rating": -3}`, wantScore: 1, wantExpl: types.DefaultRelevanceExplanation},
		{name: "boundary ten", raw: `{"rating": 10, "explanation": " top "}`, wantScore: 10, wantExpl: "top"},
		{name: "blank explanation", raw: `{"rating": 4, "explanation": "   "}`, wantScore: 4, wantExpl: types.DefaultRelevanceExplanation},
		{name: "numeric explanation", raw: `{"rating": 4, "explanation": 12}`, wantScore: 4, wantExpl: types.DefaultRelevanceExplanation},
		{name: "fenced", raw: "```json\n{\"rating\": 9, \"explanation\": \"x\"}\n```", wantScore: 9, wantExpl: "x"},
		{name: "array", raw: `[{"rating": 9}]`, wantScore: 1, wantExpl: types.DefaultRelevanceExplanation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, expl := ParseRating(tt.raw)
			if score != tt.wantScore || expl != tt.wantExpl {
				t.Errorf("ParseRating(%q) = (%d, %q), want (%d, %q)", tt.raw, score, expl, tt.wantScore, tt.wantExpl)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	r := New(nil, types.RankConfig{}, nil)
	assert.Equal(t, defaultConcurrency, r.Concurrency)
	assert.Equal(t, defaultCallTimeout, r.CallTimeout)
	assert.InDelta(t, defaultTemperature, r.Temperature, 1e-9)
}
