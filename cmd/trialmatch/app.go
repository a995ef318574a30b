// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/internal/chat"
	"github.com/pdiddy/trialmatch/internal/container"
	"github.com/pdiddy/trialmatch/internal/convert"
	"github.com/pdiddy/trialmatch/internal/document"
	"github.com/pdiddy/trialmatch/internal/enhance"
	"github.com/pdiddy/trialmatch/internal/geocode"
	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/internal/logging"
	"github.com/pdiddy/trialmatch/internal/profile"
	"github.com/pdiddy/trialmatch/internal/rank"
	"github.com/pdiddy/trialmatch/internal/registry"
	"github.com/pdiddy/trialmatch/internal/search"
	"github.com/pdiddy/trialmatch/pkg/types"
)

// app holds the clients built from configuration for one command run.
type app struct {
	cfg types.AppConfig
	log *zap.Logger

	geocoder geocode.Geocoder
	registry *registry.Client

	// model is nil when no OpenAI key is configured; the enhancer,
	// ranker, assistant, and document parser are then unavailable.
	model llm.Completer

	profiles *profile.Store
}

// newApp loads configuration and builds the upstream clients.
func newApp() (*app, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	if cfg.Geocode.APIKey != "" {
		a.geocoder = geocode.NewOpenCageClient(cfg.Geocode)
	} else {
		log.Debug("no geocoder key configured; distance filters will be skipped")
	}
	a.registry = registry.NewClient(cfg.Registry, a.geocoder, cfg.Search.StrictGeo)
	if cfg.AI.APIKey != "" {
		a.model = llm.NewOpenAIClient(cfg.AI, log)
	}
	return a, nil
}

// openProfiles opens the profile store on first use.
func (a *app) openProfiles() (*profile.Store, error) {
	if a.profiles != nil {
		return a.profiles, nil
	}
	s, err := profile.NewStore(a.cfg.Profile)
	if err != nil {
		return nil, err
	}
	a.profiles = s
	return s, nil
}

func (a *app) close() {
	if a.profiles != nil {
		a.profiles.Close()
	}
	a.log.Sync()
}

func (a *app) requireModel(what string) error {
	if a.model == nil {
		return fmt.Errorf("%s needs an OpenAI API key: set ai.api_key, TRIALMATCH_AI_API_KEY, or .secrets/openai-api-key", what)
	}
	return nil
}

// orchestrator wires the search pipeline. profiles may be nil.
func (a *app) orchestrator(profiles search.ProfileSource) *search.Orchestrator {
	o := &search.Orchestrator{
		Fetcher:        a.registry,
		Timeout:        a.cfg.Search.Timeout,
		EnhanceTimeout: a.cfg.Search.EnhanceTimeout,
		Log:            a.log,
	}
	if profiles != nil {
		o.Profiles = profiles
	}
	if a.model != nil {
		o.Enhancer = enhance.New(a.model, a.log)
		o.Ranker = rank.New(a.model, a.cfg.Rank, a.log)
	}
	return o
}

// documentParser builds the parser. PDF and office formats need the
// markitdown container; without a runtime only text documents work.
func (a *app) documentParser(ctx context.Context) *document.Parser {
	var rich convert.Converter
	if rt, err := container.DetectRuntime(ctx); err != nil {
		a.log.Debug("no container runtime; rich document formats unavailable", zap.Error(err))
	} else if mc, err := convert.NewMarkitdownConverter(ctx, rt, a.cfg.Document.Image); err != nil {
		a.log.Debug("markitdown unavailable", zap.Error(err))
	} else {
		rich = mc
	}

	return &document.Parser{
		Converter: convert.NewRouter(rich),
		Model:     a.model,
		HTTP:      &http.Client{Timeout: a.cfg.Document.Timeout},
		UserAgent: a.cfg.Document.UserAgent,
		MaxChars:  a.cfg.Document.MaxChars,
		Log:       a.log,
	}
}

func (a *app) assistant() *chat.Assistant {
	return chat.New(a.model, a.log)
}
