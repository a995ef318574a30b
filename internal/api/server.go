// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api serves the trial search pipeline over HTTP with gin.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/internal/chat"
	"github.com/pdiddy/trialmatch/internal/geocode"
	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/internal/metrics"
	"github.com/pdiddy/trialmatch/internal/registry"
	"github.com/pdiddy/trialmatch/internal/search"
	"github.com/pdiddy/trialmatch/pkg/types"
)

const (
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Searcher runs an orchestrated search.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Output, error)
}

// TrialLookup fetches one registry study by NCT id.
type TrialLookup interface {
	GetStudy(ctx context.Context, nctID string) (registry.Study, error)
}

// ProfileStore persists user profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (types.UserProfile, error)
	Upsert(ctx context.Context, p types.UserProfile) (types.UserProfile, error)
	ApplyDocument(ctx context.Context, userID string, doc types.ParsedDocument, source string) (types.UserProfile, error)
}

// DocumentParser extracts profile entities from a document.
type DocumentParser interface {
	Parse(ctx context.Context, source string) (types.ParsedDocument, error)
}

// Assistant answers chat conversations.
type Assistant interface {
	Reply(ctx context.Context, messages []llm.Message) (chat.Reply, error)
}

// Server holds the handler dependencies. A nil dependency makes its
// routes answer 503.
type Server struct {
	Search    Searcher
	Trials    TrialLookup
	Geocoder  geocode.Geocoder
	Enhancer  search.QueryEnhancer
	Ranker    search.Ranker
	Chat      Assistant
	Documents DocumentParser
	Profiles  ProfileStore

	// MaxBodyBytes limits request bodies (default 1 MiB).
	MaxBodyBytes int64

	Log *zap.Logger
}

// Handler returns the gin engine with middleware and routes installed.
func (s *Server) Handler() *gin.Engine {
	maxBody := s.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	router := gin.New()
	router.Use(gin.Recovery(),
		RequestIDMiddleware(),
		LoggingMiddleware(s.log()),
		CORSMiddleware(),
		RequestSizeLimitMiddleware(maxBody),
		UserMiddleware())

	router.GET("/health", s.healthHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiRoutes := router.Group("/api")
	{
		apiRoutes.GET("/trials/search", s.searchHandler)
		apiRoutes.GET("/trials/:id", s.trialHandler)
		apiRoutes.GET("/geocode", s.geocodeHandler)

		ai := apiRoutes.Group("/ai")
		{
			ai.POST("/enhance-query", s.enhanceHandler)
			ai.POST("/rank-trial", s.rankHandler)
			ai.POST("/chat", s.chatHandler)
			ai.POST("/parse-document", s.parseDocumentHandler)
		}

		profile := apiRoutes.Group("/profile", RequireUser())
		{
			profile.GET("", s.getProfileHandler)
			profile.POST("", s.saveProfileHandler)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		SendError(c, http.StatusNotFound, ErrorCodeInvalidRequest, "no route for "+c.Request.Method+" "+c.Request.URL.Path)
	})
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, cfg types.ServerConfig) error {
	if cfg.MaxBodyBytes > 0 {
		s.MaxBodyBytes = cfg.MaxBodyBytes
	}
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log().Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", cfg.Addr, err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log().Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// notConfigured writes a 503 when dep is missing and reports whether it did.
func notConfigured(c *gin.Context, missing bool, what string) bool {
	if missing {
		SendError(c, http.StatusServiceUnavailable, ErrorCodeNotConfigured, what+" is not configured")
	}
	return missing
}
