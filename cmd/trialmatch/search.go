// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trialmatch/internal/search"
	"github.com/pdiddy/trialmatch/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search ClinicalTrials.gov and rank the results",
	Long: `Search queries the ClinicalTrials.gov registry by keyword, phase, and
overall status, optionally limited to a distance from a location. With no
criteria the most recently updated studies are returned.

With --user the results are ranked against that user's stored profile.
--enhanced expands the keyword with related terms before searching.
--save writes the query and results to a YAML file that --from-file replays.`,
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().String("keyword", "", "free-text condition or intervention")
	cmd.Flags().String("phase", "", "trial phase (e.g. PHASE2)")
	cmd.Flags().String("status", "", "overall status (e.g. RECRUITING)")
	cmd.Flags().String("location", "", "place to measure distance from")
	cmd.Flags().String("distance", "", "radius around location, e.g. 50mi or 80km")
	cmd.Flags().Bool("enhanced", false, "expand the keyword with the language model")
	cmd.Flags().String("user", "", "rank against this user's stored profile")
	cmd.Flags().Int("page-size", 0, "studies per page (default from registry.page_size)")
	cmd.Flags().String("page-token", "", "token of the page to fetch")
	cmd.Flags().Bool("json", false, "output results as JSON")
	cmd.Flags().String("save", "", "save the query and results to a YAML file")
	cmd.Flags().String("from-file", "", "replay the query saved in a YAML file")
}

func runSearch(cmd *cobra.Command, args []string) error {
	req, err := searchRequestFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var profiles search.ProfileSource
	if req.UserID != "" {
		store, err := a.openProfiles()
		if err != nil {
			return err
		}
		profiles = store
	}
	if req.Enhanced && a.model == nil {
		warnf("--enhanced ignored, no OpenAI API key configured")
	}

	fmt.Fprintf(os.Stderr, "Searching %s\n", criteriaSummary(req.Criteria))
	out, err := a.orchestrator(profiles).Search(context.Background(), req)
	if err != nil {
		return err
	}
	for _, w := range out.Warnings {
		warnf("%s", w)
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := search.WriteQueryFile(path, req, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved query to %s\n", path)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return search.FormatJSON(out, cmd.OutOrStdout())
	}
	return search.FormatTable(out, cmd.OutOrStdout())
}

// searchRequestFromFlags builds the request from --from-file, with any
// explicitly set flag overriding the saved value.
func searchRequestFromFlags(cmd *cobra.Command) (search.Request, error) {
	var req search.Request
	if path, _ := cmd.Flags().GetString("from-file"); path != "" {
		qf, err := search.ReadQueryFile(path)
		if err != nil {
			return search.Request{}, err
		}
		req = qf.Query.ToRequest()
	}

	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("keyword", &req.Criteria.Keyword)
	str("phase", &req.Criteria.Phase)
	str("status", &req.Criteria.Status)
	str("location", &req.Criteria.Location)
	str("distance", &req.Criteria.Distance)
	str("page-token", &req.Criteria.PageToken)
	str("user", &req.UserID)
	if f.Changed("enhanced") {
		req.Enhanced, _ = f.GetBool("enhanced")
	}
	if f.Changed("page-size") {
		n, _ := f.GetInt("page-size")
		if n < 0 {
			return search.Request{}, fmt.Errorf("--page-size must not be negative")
		}
		req.Criteria.PageSize = n
	}

	if req.Criteria.Distance != "" && req.Criteria.Location == "" {
		warnf("--distance has no effect without --location")
	}
	return req, nil
}

// criteriaSummary renders criteria for progress output.
func criteriaSummary(c types.SearchCriteria) string {
	if c.IsEmpty() {
		return "most recently updated studies"
	}
	s := fmt.Sprintf("keyword=%q phase=%q status=%q", c.Keyword, c.Phase, c.Status)
	if c.HasGeo() {
		s += fmt.Sprintf(" within %s of %q", c.Distance, c.Location)
	}
	return s
}
