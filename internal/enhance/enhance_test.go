// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enhance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/llm"
)

type fakeModel struct {
	out  string
	err  error
	last llm.Request
}

func (f *fakeModel) Complete(_ context.Context, req llm.Request) (string, error) {
	f.last = req
	return f.out, f.err
}

func TestEnhance(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want string
	}{
		{name: "expanded", out: "asthma OR reactive airway disease", want: "asthma OR reactive airway disease"},
		{name: "quoted", out: `  "asthma bronchial"  `, want: "asthma bronchial"},
		{name: "single quoted", out: `'asthma'`, want: "asthma"},
		{name: "blank output", out: "   \n", want: "asthma"},
		{name: "only quotes", out: `""`, want: "asthma"},
		{name: "model error", err: errs.Upstream("openai", 500, nil), want: "asthma"},
		{name: "cancelled", err: context.Canceled, want: "asthma"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModel{out: tt.out, err: tt.err}
			got := New(m, nil).Enhance(context.Background(), "asthma", "Conditions: asthma")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnhancePrompt(t *testing.T) {
	m := &fakeModel{out: "x"}
	New(m, nil).Enhance(context.Background(), "lung cancer", "Conditions: NSCLC")

	assert.Contains(t, m.last.System, "enhances search queries for clinical trials")
	require.Len(t, m.last.Messages, 1)
	assert.Equal(t, llm.RoleUser, m.last.Messages[0].Role)
	assert.Equal(t, "Query: lung cancer\nProfile: Conditions: NSCLC", m.last.Messages[0].Content)
}

func TestEnhanceNilModel(t *testing.T) {
	var e *Enhancer
	assert.Equal(t, "q", e.Enhance(context.Background(), "q", ""))
	assert.Equal(t, "q", (&Enhancer{}).Enhance(context.Background(), "q", ""))
}

func TestCleanOutput(t *testing.T) {
	assert.Equal(t, `a "b" c`, cleanOutput(`a "b" c`))
	assert.Equal(t, `"`, cleanOutput(`"`))
	assert.Equal(t, "x", cleanOutput("`x`"))
}
