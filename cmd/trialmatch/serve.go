// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/trialmatch/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search pipeline over HTTP",
	Long: `Serve starts the HTTP API: trial search and detail, geocoding, query
enhancement, ranking, chat, document parsing, and profile storage. The
authenticated user is read from the X-User-ID header. Prometheus metrics
are served at /metrics. SIGINT or SIGTERM shuts the server down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	store, err := a.openProfiles()
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	o := a.orchestrator(store)
	srv := &api.Server{
		Search:       o,
		Trials:       a.registry,
		Geocoder:     a.geocoder,
		Enhancer:     o.Enhancer,
		Ranker:       o.Ranker,
		Profiles:     store,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
		Log:          a.log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.model != nil {
		srv.Chat = a.assistant()
		srv.Documents = a.documentParser(ctx)
	} else {
		a.log.Warn("no OpenAI API key configured; AI routes will answer 503")
	}
	return srv.ListenAndServe(ctx, a.cfg.Server)
}
