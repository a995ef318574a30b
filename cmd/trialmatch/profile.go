// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/profile"
	"github.com/pdiddy/trialmatch/pkg/types"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage stored patient profiles",
	Long: `Profile manages the local SQLite profile store. A profile holds the
conditions, prior treatments, outcomes, side effects, and discontinuation
reasons the ranker compares trials against. There is one profile per user.`,
}

// --- show subcommand ---

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a user's profile as YAML",
	RunE:  runProfileShow,
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	store, a, err := profileStore()
	if err != nil {
		return err
	}
	defer a.close()

	user, _ := cmd.Flags().GetString("user")
	p, err := store.Get(context.Background(), user)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(cmd.OutOrStdout(), p)
	}
	return profile.WriteYAML(cmd.OutOrStdout(), p)
}

// --- set subcommand ---

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update fields of a user's profile",
	Long: `Set updates the given fields of a user's profile, creating the profile
when it does not exist. Fields whose flags are not given keep their values.`,
	RunE: runProfileSet,
}

func runProfileSet(cmd *cobra.Command, args []string) error {
	store, a, err := profileStore()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	user, _ := cmd.Flags().GetString("user")
	p, err := store.Get(ctx, user)
	if err != nil && !isNotFound(err) {
		return err
	}
	p.UserID = user

	f := cmd.Flags()
	for flag, dst := range map[string]*string{
		"conditions":              &p.Conditions,
		"prior-treatments":        &p.PriorTreatments,
		"outcomes":                &p.Outcomes,
		"side-effects":            &p.SideEffects,
		"discontinuation-reasons": &p.DiscontinuationReasons,
	} {
		if f.Changed(flag) {
			*dst, _ = f.GetString(flag)
		}
	}

	saved, err := store.Upsert(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved profile for %s\n", saved.UserID)
	return profile.WriteYAML(cmd.OutOrStdout(), saved)
}

// --- import subcommand ---

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace a user's profile with one read from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileImport,
}

func runProfileImport(cmd *cobra.Command, args []string) error {
	store, a, err := profileStore()
	if err != nil {
		return err
	}
	defer a.close()

	user, _ := cmd.Flags().GetString("user")
	p, err := store.Import(context.Background(), user, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Imported profile for %s from %s\n", p.UserID, args[0])
	return nil
}

// --- add-document subcommand ---

var profileAddDocumentCmd = &cobra.Command{
	Use:   "add-document <ref>...",
	Short: "Record document references on a user's profile",
	Long: `Add-document records paths or URLs of medical documents on a user's
profile without parsing them. References already on the profile are kept
once. Use "document parse --apply" to also merge the extracted entities.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProfileAddDocument,
}

func runProfileAddDocument(cmd *cobra.Command, args []string) error {
	store, a, err := profileStore()
	if err != nil {
		return err
	}
	defer a.close()

	user, _ := cmd.Flags().GetString("user")
	return addDocuments(context.Background(), store, user, args, cmd.OutOrStdout())
}

// documentRecorder is the part of the profile store add-document needs.
type documentRecorder interface {
	AddDocuments(ctx context.Context, userID string, docs ...string) (types.UserProfile, error)
}

func addDocuments(ctx context.Context, store documentRecorder, user string, refs []string, w io.Writer) error {
	p, err := store.AddDocuments(ctx, user, refs...)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Profile %s now lists %d document(s)\n", p.UserID, len(p.Documents))
	return nil
}

// --- export subcommand ---

var profileExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write every stored profile to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileExport,
}

func runProfileExport(cmd *cobra.Command, args []string) error {
	store, a, err := profileStore()
	if err != nil {
		return err
	}
	defer a.close()

	if err := store.ExportYAML(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported profiles to %s\n", args[0])
	return nil
}

func profileStore() (*profile.Store, *app, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	store, err := a.openProfiles()
	if err != nil {
		a.close()
		return nil, nil, err
	}
	return store, a, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrProfileNotFound)
}

func init() {
	profileShowCmd.Flags().String("user", "", "user id")
	profileShowCmd.Flags().Bool("json", false, "output as JSON")
	profileShowCmd.MarkFlagRequired("user")

	profileSetCmd.Flags().String("user", "", "user id")
	profileSetCmd.Flags().String("conditions", "", "current conditions")
	profileSetCmd.Flags().String("prior-treatments", "", "treatments tried before")
	profileSetCmd.Flags().String("outcomes", "", "outcomes of prior treatments")
	profileSetCmd.Flags().String("side-effects", "", "side effects experienced")
	profileSetCmd.Flags().String("discontinuation-reasons", "", "reasons treatments were stopped")
	profileSetCmd.MarkFlagRequired("user")

	profileImportCmd.Flags().String("user", "", "user id (overrides the id in the file)")

	profileAddDocumentCmd.Flags().String("user", "", "user id")
	profileAddDocumentCmd.MarkFlagRequired("user")

	profileCmd.AddCommand(profileShowCmd, profileSetCmd, profileImportCmd, profileAddDocumentCmd, profileExportCmd)
	rootCmd.AddCommand(profileCmd)
}
