// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/trialmatch/internal/search"
	"github.com/pdiddy/trialmatch/pkg/types"
)

func newSearchCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	addSearchFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestSearchRequestFromFlags(t *testing.T) {
	cmd := newSearchCmd(t, "--keyword", "asthma", "--location", "Boston", "--distance", "50mi",
		"--status", "RECRUITING", "--page-size", "5", "--enhanced", "--user", "u1")
	req, err := searchRequestFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, search.Request{
		Criteria: types.SearchCriteria{Keyword: "asthma", Status: "RECRUITING", Location: "Boston", Distance: "50mi", PageSize: 5},
		Enhanced: true,
		UserID:   "u1",
	}, req)
	assert.Equal(t, `keyword="asthma" phase="" status="RECRUITING" within 50mi of "Boston"`, criteriaSummary(req.Criteria))
}

func TestSearchRequestFromFileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	saved := search.Request{
		Criteria: types.SearchCriteria{Keyword: "migraine", Phase: "PHASE3", PageToken: "next"},
		Enhanced: true,
		UserID:   "u1",
	}
	require.NoError(t, search.WriteQueryFile(path, saved, search.Output{}))

	req, err := searchRequestFromFlags(newSearchCmd(t, "--from-file", path, "--phase", "PHASE2"))
	require.NoError(t, err)
	assert.Equal(t, search.Request{
		Criteria: types.SearchCriteria{Keyword: "migraine", Phase: "PHASE2"},
		Enhanced: true,
		UserID:   "u1",
	}, req)
}

func TestSearchRequestFromFlagsErrors(t *testing.T) {
	_, err := searchRequestFromFlags(newSearchCmd(t, "--page-size", "-1"))
	assert.ErrorContains(t, err, "--page-size")

	_, err = searchRequestFromFlags(newSearchCmd(t, "--from-file", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorContains(t, err, "reading query file")
}

func TestCriteriaSummaryEmpty(t *testing.T) {
	assert.Equal(t, "most recently updated studies", criteriaSummary(types.SearchCriteria{PageSize: 3}))
}
