// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trialmatch/pkg/types"
)

// QueryFile is the on-disk representation of a saved search and its
// results. A saved file can be replayed with the same criteria later.
type QueryFile struct {
	Query   QueryParams         `yaml:"query"`
	Results []types.RankedTrial `yaml:"results"`
	Summary QuerySummary        `yaml:"summary"`
}

// QueryParams stores the request in a serializable form.
type QueryParams struct {
	Criteria types.SearchCriteria `yaml:"criteria"`
	Enhanced bool                 `yaml:"enhanced,omitempty"`
	UserID   string               `yaml:"user_id,omitempty"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total         int       `yaml:"total"`
	Ranked        bool      `yaml:"ranked"`
	EnhancedQuery string    `yaml:"enhanced_query,omitempty"`
	NextPageToken string    `yaml:"next_page_token,omitempty"`
	Warnings      []string  `yaml:"warnings,omitempty"`
	Timestamp     time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a request and its output to a YAML file.
func WriteQueryFile(path string, req Request, out Output) error {
	qf := QueryFile{
		Query: QueryParams{
			Criteria: req.Criteria,
			Enhanced: req.Enhanced,
			UserID:   req.UserID,
		},
		Results: out.Trials,
		Summary: QuerySummary{
			Total:         len(out.Trials),
			Ranked:        out.Ranked,
			NextPageToken: out.NextPageToken,
			Warnings:      out.Warnings,
			Timestamp:     time.Now(),
		},
	}
	if out.Enhanced {
		qf.Summary.EnhancedQuery = out.Query
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}

// ToRequest converts stored QueryParams back into a Request. Paging is
// dropped so a replay starts from the first page.
func (p QueryParams) ToRequest() Request {
	c := p.Criteria
	c.PageToken = ""
	return Request{Criteria: c, Enhanced: p.Enhanced, UserID: p.UserID}
}
