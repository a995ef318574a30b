// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat answers assistant messages. The latest user message is
// classified first and the reply is written in the persona for that topic.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/llm"
)

// Topic is the classification of a user message.
type Topic string

const (
	TopicClinicalTrial Topic = "clinical trial"
	TopicMentalHealth  Topic = "mental health"
)

const classifierPrompt = "You are a classifier that determines if a user's message is related to clinical trials or mental health. " +
	`Respond with "clinical trial" or "mental health".`

var personas = map[Topic]string{
	TopicClinicalTrial: "You are a helpful assistant that can answer questions about clinical trials. " +
		"Provide factual information and cite sources.",
	TopicMentalHealth: "You are a supportive companion for someone dealing with health stress. " +
		"Respond with empathy and offer coping suggestions. Do not offer medical advice.",
}

// Reply is the assistant's answer and the topic it was written for.
type Reply struct {
	Message string `json:"message"`
	Topic   Topic  `json:"topic"`
}

// Assistant holds the model used for both classification and replies.
type Assistant struct {
	Model llm.Completer
	Log   *zap.Logger
}

// New returns an Assistant backed by model.
func New(model llm.Completer, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{Model: model, Log: log}
}

// Reply answers the conversation in messages. An empty conversation, or
// one with no user message, fails with ErrInvalidInput. A failed
// classification falls back to the supportive persona.
func (a *Assistant) Reply(ctx context.Context, messages []llm.Message) (Reply, error) {
	if len(messages) == 0 {
		return Reply{}, errs.Invalid("messages", "must not be empty")
	}
	last := lastUserMessage(messages)
	if last == "" {
		return Reply{}, errs.Invalid("messages", "no user message to answer")
	}

	topic := a.classify(ctx, last)

	conversation := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		conversation = append(conversation, m)
	}

	out, err := a.Model.Complete(ctx, llm.Request{System: personas[topic], Messages: conversation})
	if err != nil {
		return Reply{}, fmt.Errorf("chat reply: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return Reply{}, errs.Parse("chat reply", fmt.Errorf("empty completion"))
	}
	return Reply{Message: out, Topic: topic}, nil
}

func (a *Assistant) classify(ctx context.Context, message string) Topic {
	out, err := a.Model.Complete(ctx, llm.Request{
		System:      classifierPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: message}},
		Temperature: llm.Temperature(0),
		MaxTokens:   5,
	})
	if err != nil {
		a.log().Warn("chat classification failed", zap.Error(err))
		return TopicMentalHealth
	}
	return ParseTopic(out)
}

// ParseTopic maps classifier output onto a Topic. Anything that does not
// name clinical trials is treated as mental health.
func ParseTopic(raw string) Topic {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `."'`))
	if strings.Contains(s, "clinical trial") {
		return TopicClinicalTrial
	}
	return TopicMentalHealth
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			if s := strings.TrimSpace(messages[i].Content); s != "" {
				return s
			}
		}
	}
	return ""
}

func (a *Assistant) log() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}
