// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/pkg/types"
)

// ParseRating reads {"rating": n, "explanation": s} out of a model reply.
// Each field falls back to its default on its own: a reply that is not JSON
// yields both defaults, a rating that is missing, non-numeric, or outside
// 1-10 after rounding yields the default score, and a blank explanation
// yields the default explanation.
func ParseRating(raw string) (score int, explanation string) {
	score, explanation = types.DefaultRelevanceScore, types.DefaultRelevanceExplanation

	var reply struct {
		Rating      json.RawMessage `json:"rating"`
		Explanation json.RawMessage `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(llm.StripJSONFence(raw)), &reply); err != nil {
		return score, explanation
	}

	if s, ok := parseScore(reply.Rating); ok {
		score = s
	}

	var text string
	if len(reply.Explanation) > 0 && json.Unmarshal(reply.Explanation, &text) == nil {
		if text = strings.TrimSpace(text); text != "" {
			explanation = text
		}
	}
	return score, explanation
}

// parseScore accepts a JSON number or a numeric string.
func parseScore(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	n := int(math.Round(f))
	if n < types.MinRelevanceScore || n > types.MaxRelevanceScore {
		return 0, false
	}
	return n, true
}
