// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
)

// FormatTable writes trials as a human-readable table to w. The score
// column appears only for ranked output.
func FormatTable(out Output, w io.Writer) error {
	if len(out.Trials) == 0 {
		fmt.Fprintln(w, "No trials found.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	if out.Ranked {
		table.Header("#", "NCT ID", "Title", "Status", "Phase", "Score")
	} else {
		table.Header("#", "NCT ID", "Title", "Status", "Phase")
	}
	for i, t := range out.Trials {
		row := []string{strconv.Itoa(i + 1), t.ID, truncate(t.Title, 50), truncate(t.Status, 22), truncate(t.Phase, 16)}
		if out.Ranked {
			row = append(row, strconv.Itoa(t.RelevanceScore))
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("formatting row %d: %w", i+1, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}

	fmt.Fprintf(w, "\n%d trials", len(out.Trials))
	if out.Enhanced {
		fmt.Fprintf(w, " (query: %q)", out.Query)
	}
	fmt.Fprintln(w)
	if out.NextPageToken != "" {
		fmt.Fprintf(w, "next page: --page-token %s\n", out.NextPageToken)
	}
	return nil
}

// FormatJSON writes the output as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// truncate caps s at max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
