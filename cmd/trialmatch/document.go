// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Extract profile information from medical documents",
}

var documentParseCmd = &cobra.Command{
	Use:   "parse <path|url>",
	Short: "Extract conditions, treatments, and outcomes from a document",
	Long: `Parse reads a local file or downloads an http(s) URL, converts it to
text, and asks the language model for the conditions, treatments, outcomes,
side effects, and discontinuation reasons it mentions.

Text and Markdown files are read directly. PDF and office documents are
converted by the markitdown container image (docker or podman required).

With --apply the extracted entities are merged into the --user profile and
the document is recorded on it.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentParse,
}

func init() {
	documentParseCmd.Flags().Bool("apply", false, "merge the result into the user's profile")
	documentParseCmd.Flags().String("user", "", "user id for --apply")
	documentParseCmd.Flags().Bool("json", false, "output the extracted entities as JSON")

	documentCmd.AddCommand(documentParseCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentParse(cmd *cobra.Command, args []string) error {
	apply, _ := cmd.Flags().GetBool("apply")
	user, _ := cmd.Flags().GetString("user")
	if apply && user == "" {
		return fmt.Errorf("--apply requires --user")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireModel("document parsing"); err != nil {
		return err
	}

	ctx := context.Background()
	fmt.Fprintf(os.Stderr, "Parsing %s\n", args[0])
	doc, err := a.documentParser(ctx).Parse(ctx, args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if err := writeJSON(w, doc); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Conditions:              %s\n", doc.Conditions)
		fmt.Fprintf(w, "Treatments:              %s\n", doc.Treatments)
		fmt.Fprintf(w, "Outcomes:                %s\n", doc.Outcomes)
		fmt.Fprintf(w, "Side effects:            %s\n", doc.SideEffects)
		fmt.Fprintf(w, "Discontinuation reasons: %s\n", doc.DiscontinuationReasons)
	}

	if !apply {
		return nil
	}
	store, err := a.openProfiles()
	if err != nil {
		return err
	}
	p, err := store.ApplyDocument(ctx, user, doc, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Updated profile for %s (%d documents)\n", p.UserID, len(p.Documents))
	return nil
}
