// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"strings"

	"github.com/pdiddy/trialmatch/pkg/types"
)

// studyURLBase is the public page for a study, suffixed with its NCT id.
const studyURLBase = "https://clinicaltrials.gov/study/"

// Study is one raw record of the registry response. Every nested module is
// optional; read it through the accessor methods, which never return nil.
type Study struct {
	ProtocolSection *ProtocolSection `json:"protocolSection,omitempty"`
}

// ProtocolSection holds the study modules used for projection.
type ProtocolSection struct {
	IdentificationModule    *IdentificationModule    `json:"identificationModule,omitempty"`
	StatusModule            *StatusModule            `json:"statusModule,omitempty"`
	DesignModule            *DesignModule            `json:"designModule,omitempty"`
	ConditionsModule        *ConditionsModule        `json:"conditionsModule,omitempty"`
	DescriptionModule       *DescriptionModule       `json:"descriptionModule,omitempty"`
	ContactsLocationsModule *ContactsLocationsModule `json:"contactsLocationsModule,omitempty"`
}

type IdentificationModule struct {
	NCTID         string `json:"nctId"`
	BriefTitle    string `json:"briefTitle"`
	OfficialTitle string `json:"officialTitle"`
}

type StatusModule struct {
	OverallStatus            string      `json:"overallStatus"`
	LastKnownStatus          string      `json:"lastKnownStatus"`
	LastUpdatePostDateStruct *DateStruct `json:"lastUpdatePostDateStruct,omitempty"`
}

type DateStruct struct {
	Date string `json:"date"`
}

type DesignModule struct {
	Phases []string `json:"phases"`
}

type ConditionsModule struct {
	Conditions []string `json:"conditions"`
}

type DescriptionModule struct {
	BriefSummary string `json:"briefSummary"`
}

type ContactsLocationsModule struct {
	Locations []Location `json:"locations"`
}

type Location struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

func (s Study) protocol() ProtocolSection {
	if s.ProtocolSection == nil {
		return ProtocolSection{}
	}
	return *s.ProtocolSection
}

func (p ProtocolSection) identification() IdentificationModule {
	if p.IdentificationModule == nil {
		return IdentificationModule{}
	}
	return *p.IdentificationModule
}

func (p ProtocolSection) status() StatusModule {
	if p.StatusModule == nil {
		return StatusModule{}
	}
	return *p.StatusModule
}

func (p ProtocolSection) phases() []string {
	if p.DesignModule == nil {
		return nil
	}
	return p.DesignModule.Phases
}

func (p ProtocolSection) conditions() []string {
	if p.ConditionsModule == nil {
		return nil
	}
	return p.ConditionsModule.Conditions
}

func (p ProtocolSection) summary() string {
	if p.DescriptionModule == nil {
		return ""
	}
	return p.DescriptionModule.BriefSummary
}

func (p ProtocolSection) locations() []Location {
	if p.ContactsLocationsModule == nil {
		return nil
	}
	return p.ContactsLocationsModule.Locations
}

func (m StatusModule) lastUpdated() string {
	if m.LastUpdatePostDateStruct == nil {
		return ""
	}
	return m.LastUpdatePostDateStruct.Date
}

// String joins the non-empty parts of the site, "Facility, City, State, Country".
func (l Location) String() string {
	var parts []string
	for _, p := range []string{l.Facility, l.City, l.State, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Project maps a raw study onto a TrialRecord. Absent fields take the
// types.Fallback* values; the record is never dropped.
func Project(s Study) types.TrialRecord {
	p := s.protocol()
	id := p.identification()
	st := p.status()

	rec := types.TrialRecord{
		ID:          strings.TrimSpace(id.NCTID),
		Title:       firstNonEmpty(types.FallbackTitle, id.BriefTitle, id.OfficialTitle),
		Status:      firstNonEmpty(types.FallbackStatus, st.OverallStatus, st.LastKnownStatus),
		Phase:       firstNonEmpty(types.FallbackPhase, first(p.phases())),
		Condition:   firstNonEmpty(types.FallbackCondition, first(p.conditions())),
		Location:    types.FallbackLocation,
		LastUpdated: firstNonEmpty(types.FallbackLastUpdated, st.lastUpdated()),
		Description: firstNonEmpty(types.FallbackDescription, p.summary()),
	}
	if locs := p.locations(); len(locs) > 0 {
		rec.Location = firstNonEmpty(types.FallbackLocation, locs[0].String())
	}
	if rec.ID != "" {
		rec.URL = studyURLBase + rec.ID
	}
	return rec
}

// ProjectAll projects studies in order.
func ProjectAll(studies []Study) []types.TrialRecord {
	out := make([]types.TrialRecord, len(studies))
	for i, s := range studies {
		out[i] = Project(s)
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// firstNonEmpty returns the first candidate that is not blank, or fallback.
func firstNonEmpty(fallback string, candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return fallback
}
