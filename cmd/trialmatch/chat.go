// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trialmatch/internal/llm"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the assistant about clinical trials",
	Long: `Chat sends one message to the assistant. Questions about clinical trials
get a factual answer; anything else gets a supportive reply without medical
advice.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireModel("chat"); err != nil {
		return err
	}

	reply, err := a.assistant().Reply(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: strings.Join(args, " ")},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
	return nil
}
