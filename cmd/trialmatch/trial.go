// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trialmatch/internal/registry"
	"github.com/pdiddy/trialmatch/pkg/types"
)

var trialCmd = &cobra.Command{
	Use:   "trial <nctId>",
	Short: "Show one study from ClinicalTrials.gov",
	Long: `Trial fetches a single study by its NCT identifier (e.g. NCT01234567)
and prints its projected record. --raw prints the registry JSON instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrial,
}

func init() {
	trialCmd.Flags().Bool("json", false, "output the record as JSON")
	trialCmd.Flags().Bool("raw", false, "output the raw registry study as JSON")

	rootCmd.AddCommand(trialCmd)
}

func runTrial(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	study, err := a.registry.GetStudy(context.Background(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	raw, _ := cmd.Flags().GetBool("raw")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	switch {
	case raw:
		return writeJSON(w, study)
	case jsonOutput:
		return writeJSON(w, registry.Project(study))
	default:
		printTrial(w, registry.Project(study))
		return nil
	}
}

func printTrial(w io.Writer, t types.TrialRecord) {
	fmt.Fprintf(w, "%s  %s\n\n", t.ID, t.Title)
	fmt.Fprintf(w, "Status:       %s\n", t.Status)
	fmt.Fprintf(w, "Phase:        %s\n", t.Phase)
	fmt.Fprintf(w, "Condition:    %s\n", t.Condition)
	fmt.Fprintf(w, "Location:     %s\n", t.Location)
	fmt.Fprintf(w, "Last updated: %s\n", t.LastUpdated)
	if t.URL != "" {
		fmt.Fprintf(w, "URL:          %s\n", t.URL)
	}
	fmt.Fprintf(w, "\n%s\n", t.Description)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
