// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is a small client for the OpenAI chat-completions API. Calls
// retry on HTTP 429 and run behind a circuit breaker so a failing upstream
// is short-circuited instead of queued behind timeouts.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cb "github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/httputil"
	"github.com/pdiddy/trialmatch/internal/metrics"
	"github.com/pdiddy/trialmatch/pkg/types"
)

// chatCompletionsURL is the default endpoint. Package-level var for test
// substitution.
var chatCompletionsURL = "https://api.openai.com/v1/chat/completions"

const (
	serviceName            = "openai"
	defaultModel           = "gpt-3.5-turbo"
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	maxErrorBody           = 4096
)

// Roles used in Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request. System, when set, is sent as the
// first message.
type Request struct {
	System   string
	Messages []Message

	// Temperature is left to the API default when nil.
	Temperature *float64

	// JSONMode asks the model for a single JSON object.
	JSONMode bool

	MaxTokens int
}

// Temperature returns a pointer to t for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

// StripJSONFence removes a Markdown code fence, optionally tagged json,
// around a model reply that should be a JSON object.
func StripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Completer returns the text of one model completion. Implementations are
// safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIClient implements Completer over HTTP.
type OpenAIClient struct {
	HTTP       *http.Client
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int

	breaker *cb.CircuitBreaker
}

// NewOpenAIClient builds a client from configuration. A nil logger
// disables breaker state logging.
func NewOpenAIClient(cfg types.AIConfig, log *zap.Logger) *OpenAIClient {
	if log == nil {
		log = zap.NewNop()
	}
	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = defaultBreakerFailures
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	return &OpenAIClient{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		MaxRetries: cfg.MaxRetries,
		breaker: cb.NewCircuitBreaker(cb.Settings{
			Name:        serviceName,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts cb.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(failures)
			},
			// Only upstream faults count against the breaker; a caller's
			// cancelled context or a malformed reply does not.
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, errs.ErrUpstreamUnavailable)
			},
			OnStateChange: func(name string, from, to cb.State) {
				log.Warn("circuit breaker state change",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// Complete sends req and returns the content of the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.breaker == nil {
		return c.complete(ctx, req)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, req)
	})
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return "", errs.Transport(serviceName, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *OpenAIClient) complete(ctx context.Context, r Request) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(serviceName, start, err) }()

	model := c.Model
	if model == "" {
		model = defaultModel
	}
	body := chatRequest{
		Model:       model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
	if r.System != "" {
		body.Messages = append(body.Messages, Message{Role: RoleSystem, Content: r.System})
	}
	body.Messages = append(body.Messages, r.Messages...)
	if r.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.BaseURL
	if endpoint == "" {
		endpoint = chatCompletionsURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errs.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.Upstream(serviceName, resp.StatusCode, httputil.ReadLimited(resp.Body, maxErrorBody))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", errs.Parse("decoding completion", err)
	}
	if len(cr.Choices) == 0 {
		return "", errs.Parse("completion has no choices", nil)
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// OpenAI chat-completions JSON structures.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message Message `json:"message"`
}
