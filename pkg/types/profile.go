// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"
)

// UserProfile is the medical history a user keeps for trial matching.
// There is at most one profile per user.
type UserProfile struct {
	UserID                 string    `json:"user_id" yaml:"user_id"`
	Conditions             string    `json:"conditions" yaml:"conditions"`
	PriorTreatments        string    `json:"prior_treatments" yaml:"prior_treatments"`
	Outcomes               string    `json:"outcomes" yaml:"outcomes"`
	SideEffects            string    `json:"side_effects" yaml:"side_effects"`
	DiscontinuationReasons string    `json:"discontinuation_reasons" yaml:"discontinuation_reasons"`
	Documents              []string  `json:"documents" yaml:"documents"`
	UpdatedAt              time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// IsBlank reports whether none of the five free-text fields carry content.
func (p UserProfile) IsBlank() bool {
	return strings.TrimSpace(p.Conditions) == "" &&
		strings.TrimSpace(p.PriorTreatments) == "" &&
		strings.TrimSpace(p.Outcomes) == "" &&
		strings.TrimSpace(p.SideEffects) == "" &&
		strings.TrimSpace(p.DiscontinuationReasons) == ""
}

// Summary renders the free-text fields on one line each, skipping empty ones.
// It is the profile text handed to the query enhancer.
func (p UserProfile) Summary() string {
	var b strings.Builder
	for _, f := range []struct{ label, value string }{
		{"Conditions", p.Conditions},
		{"Past Treatments", p.PriorTreatments},
		{"Outcomes", p.Outcomes},
		{"Side Effects", p.SideEffects},
		{"Discontinuation Reasons", p.DiscontinuationReasons},
	} {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", f.label, strings.TrimSpace(f.value))
	}
	return b.String()
}

// ParsedDocument holds the entities a language model extracted from a
// medical document. Each field maps onto the profile field of the same theme.
type ParsedDocument struct {
	Conditions             string `json:"conditions" yaml:"conditions"`
	Treatments             string `json:"treatments" yaml:"treatments"`
	Outcomes               string `json:"outcomes" yaml:"outcomes"`
	SideEffects            string `json:"side_effects" yaml:"side_effects"`
	DiscontinuationReasons string `json:"discontinuation_reasons" yaml:"discontinuation_reasons"`
}

// MergeInto appends every non-empty extracted field to the matching profile
// field, separated by "; ", and records source in the profile documents.
func (d ParsedDocument) MergeInto(p *UserProfile, source string) {
	p.Conditions = appendField(p.Conditions, d.Conditions)
	p.PriorTreatments = appendField(p.PriorTreatments, d.Treatments)
	p.Outcomes = appendField(p.Outcomes, d.Outcomes)
	p.SideEffects = appendField(p.SideEffects, d.SideEffects)
	p.DiscontinuationReasons = appendField(p.DiscontinuationReasons, d.DiscontinuationReasons)
	if source == "" {
		return
	}
	for _, doc := range p.Documents {
		if doc == source {
			return
		}
	}
	p.Documents = append(p.Documents, source)
}

func appendField(existing, extra string) string {
	existing = strings.TrimSpace(existing)
	extra = strings.TrimSpace(extra)
	switch {
	case extra == "":
		return existing
	case existing == "":
		return extra
	case strings.Contains(existing, extra):
		return existing
	default:
		return existing + "; " + extra
	}
}
