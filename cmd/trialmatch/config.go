// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/trialmatch/internal/secrets"
	"github.com/pdiddy/trialmatch/pkg/types"
)

const defaultUserAgent = "trialmatch/0.1"

// setDefaults registers every configuration default. Keys map onto
// types.AppConfig; env vars use the TRIALMATCH_ prefix with "." as "_".
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.user_agent", defaultUserAgent)

	v.SetDefault("registry.base_url", "https://clinicaltrials.gov/api/v2/studies")
	v.SetDefault("registry.timeout", 30*time.Second)
	v.SetDefault("registry.page_size", 10)
	v.SetDefault("registry.max_retries", 5)

	v.SetDefault("geocode.base_url", "https://api.opencagedata.com/geocode/v1/json")
	v.SetDefault("geocode.timeout", 10*time.Second)
	v.SetDefault("geocode.api_key", "")

	v.SetDefault("ai.base_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("ai.model", "gpt-3.5-turbo")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.breaker_failures", 5)
	v.SetDefault("ai.breaker_cooldown", 30*time.Second)

	v.SetDefault("rank.concurrency", 5)
	v.SetDefault("rank.call_timeout", 30*time.Second)
	v.SetDefault("rank.temperature", 0.2)

	v.SetDefault("search.timeout", 60*time.Second)
	v.SetDefault("search.enhance_timeout", 10*time.Second)
	v.SetDefault("search.strict_geo", false)

	v.SetDefault("profile.db_path", "data/trialmatch.db")

	v.SetDefault("document.timeout", 60*time.Second)
	v.SetDefault("document.image", "markitdown:latest")
	v.SetDefault("document.max_chars", 12000)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// loadConfig reads the application configuration from v. API keys not
// set in configuration fall back to the secrets files, then to the
// conventional OPENAI_API_KEY and OPENCAGE_API_KEY variables.
func loadConfig(v *viper.Viper, s secrets.Store) (types.AppConfig, error) {
	ua := v.GetString("http.user_agent")
	httpCfg := func(prefix string) types.HTTPConfig {
		return types.HTTPConfig{Timeout: v.GetDuration(prefix + ".timeout"), UserAgent: ua}
	}

	cfg := types.AppConfig{
		Registry: types.RegistryConfig{
			HTTPConfig: httpCfg("registry"),
			BaseURL:    v.GetString("registry.base_url"),
			PageSize:   v.GetInt("registry.page_size"),
			MaxRetries: v.GetInt("registry.max_retries"),
		},
		Geocode: types.GeocodeConfig{
			HTTPConfig: httpCfg("geocode"),
			BaseURL:    v.GetString("geocode.base_url"),
			APIKey:     s.Get(v.GetString("geocode.api_key"), secrets.OpenCageKey, "OPENCAGE_API_KEY"),
		},
		AI: types.AIConfig{
			HTTPConfig:      httpCfg("ai"),
			BaseURL:         v.GetString("ai.base_url"),
			Model:           v.GetString("ai.model"),
			APIKey:          s.Get(v.GetString("ai.api_key"), secrets.OpenAIKey, "OPENAI_API_KEY"),
			MaxRetries:      v.GetInt("ai.max_retries"),
			BreakerFailures: v.GetInt("ai.breaker_failures"),
			BreakerCooldown: v.GetDuration("ai.breaker_cooldown"),
		},
		Rank: types.RankConfig{
			Concurrency: v.GetInt("rank.concurrency"),
			CallTimeout: v.GetDuration("rank.call_timeout"),
			Temperature: v.GetFloat64("rank.temperature"),
		},
		Search: types.SearchConfig{
			Timeout:        v.GetDuration("search.timeout"),
			EnhanceTimeout: v.GetDuration("search.enhance_timeout"),
			StrictGeo:      v.GetBool("search.strict_geo"),
		},
		Profile: types.ProfileConfig{
			DBPath: v.GetString("profile.db_path"),
		},
		Document: types.DocumentConfig{
			HTTPConfig: httpCfg("document"),
			Image:      v.GetString("document.image"),
			MaxChars:   v.GetInt("document.max_chars"),
		},
		Server: types.ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			MaxBodyBytes:    v.GetInt64("server.max_body_bytes"),
		},
		Log: types.LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if cfg.Registry.PageSize < 0 {
		return types.AppConfig{}, fmt.Errorf("registry.page_size must not be negative, got %d", cfg.Registry.PageSize)
	}
	if cfg.Rank.Concurrency < 1 {
		return types.AppConfig{}, fmt.Errorf("rank.concurrency must be at least 1, got %d", cfg.Rank.Concurrency)
	}
	return cfg, nil
}
