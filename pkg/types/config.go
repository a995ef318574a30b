// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout bounds a single HTTP request to the upstream service.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "trialmatch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RegistryConfig holds settings for the ClinicalTrials.gov adapter.
type RegistryConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the studies endpoint (default https://clinicaltrials.gov/api/v2/studies).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// PageSize is the default number of studies per page (default 10).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// GeocodeConfig holds settings for the OpenCage geocoder.
type GeocodeConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the geocoding endpoint (default https://api.opencagedata.com/geocode/v1/json).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates against the geocoder.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// AIConfig holds shared settings for stages that call the language model.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the chat-completions endpoint (default https://api.openai.com/v1/chat/completions).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier (e.g. "gpt-3.5-turbo").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the model API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retries on HTTP 429 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker (default 5).
	BreakerFailures int `json:"breaker_failures" yaml:"breaker_failures"`

	// BreakerCooldown is how long the breaker stays open before probing (default 30s).
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// RankConfig holds settings for the relevance ranker.
type RankConfig struct {
	// Concurrency caps the number of in-flight ranking calls (default 5).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// CallTimeout bounds each per-trial ranking call (default 30s).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// Temperature is the sampling temperature for ranking calls (default 0.2).
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// SearchConfig holds settings for the search orchestrator.
type SearchConfig struct {
	// Timeout bounds one whole search, all stages included (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// EnhanceTimeout bounds query enhancement (default 10s). It is further
	// capped at half of the time left in the search.
	EnhanceTimeout time.Duration `json:"enhance_timeout" yaml:"enhance_timeout"`

	// StrictGeo makes a geocoding or distance failure terminal for the
	// search. When false the search continues without the geo filter.
	StrictGeo bool `json:"strict_geo" yaml:"strict_geo"`
}

// ProfileConfig holds settings for the profile store.
type ProfileConfig struct {
	// DBPath is the sqlite database file (default data/trialmatch.db).
	DBPath string `json:"db_path" yaml:"db_path"`
}

// DocumentConfig holds settings for the document parser.
type DocumentConfig struct {
	HTTPConfig `yaml:",inline"`

	// Image is the markitdown container image used for PDF and office
	// documents (default markitdown:latest).
	Image string `json:"image" yaml:"image"`

	// MaxChars truncates the document text sent to the model (default 12000).
	MaxChars int `json:"max_chars" yaml:"max_chars"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	// MaxBodyBytes limits request bodies (default 1 MiB).
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is "json" or "console" (default console).
	Format string `json:"format" yaml:"format"`
}

// AppConfig groups the configuration of every stage.
type AppConfig struct {
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Geocode  GeocodeConfig  `json:"geocode" yaml:"geocode"`
	AI       AIConfig       `json:"ai" yaml:"ai"`
	Rank     RankConfig     `json:"rank" yaml:"rank"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Profile  ProfileConfig  `json:"profile" yaml:"profile"`
	Document DocumentConfig `json:"document" yaml:"document"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Log      LogConfig      `json:"log" yaml:"log"`
}
