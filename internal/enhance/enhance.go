// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enhance rewrites a trial search query with related terms using
// the language model.
package enhance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/internal/llm"
)

const systemPrompt = "You are a helpful assistant that enhances search queries for clinical trials. " +
	"Based on the user's query and profile, expand the query with relevant terms, synonyms, or related conditions. " +
	"Return only the enhanced query string."

// Enhancer expands queries. It never fails: any model problem yields the
// original query.
type Enhancer struct {
	Model llm.Completer
	Log   *zap.Logger
}

// New returns an Enhancer backed by model.
func New(model llm.Completer, log *zap.Logger) *Enhancer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enhancer{Model: model, Log: log}
}

// Enhance returns the expanded form of query given a free-text profile
// summary. On model error or blank output it returns query unchanged.
func (e *Enhancer) Enhance(ctx context.Context, query, profile string) string {
	if e == nil || e.Model == nil {
		return query
	}
	out, err := e.Model.Complete(ctx, llm.Request{
		System:   systemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: userPayload(query, profile)}},
	})
	if err != nil {
		e.log().Warn("query enhancement failed", zap.String("query", query), zap.Error(err))
		return query
	}
	if enhanced := cleanOutput(out); enhanced != "" {
		return enhanced
	}
	return query
}

func (e *Enhancer) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func userPayload(query, profile string) string {
	return fmt.Sprintf("Query: %s\nProfile: %s", query, profile)
}

// cleanOutput trims whitespace and one pair of surrounding quotes.
func cleanOutput(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, "'", "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
			break
		}
	}
	return s
}
