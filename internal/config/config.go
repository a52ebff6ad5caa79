// Package config provides configuration loading and validation for the service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// ModelConfig holds settings for the generation provider.
type ModelConfig struct {
	Endpoint     string  `json:"endpoint" validate:"omitempty,url"`
	APIKey       string  `json:"api_key"`
	Model        string  `json:"model"`
	VisionModel  string  `json:"vision_model"`
	MaxTokens    int     `json:"max_tokens" validate:"gt=0"`
	Temperature  float64 `json:"temperature" validate:"gte=0,lte=2"`
	MockMode     bool    `json:"mock_mode"`
	MockEndpoint string  `json:"mock_endpoint" validate:"omitempty,url"`
	Trace        bool    `json:"trace"`
}

// CreditsConfig holds settings for the external credit ledger.
type CreditsConfig struct {
	BaseURL     string        `json:"base_url" validate:"omitempty,url"`
	APIKey      string        `json:"api_key"`
	ServiceSlug string        `json:"service_slug"`
	CacheTTL    time.Duration `json:"cache_ttl"`
}

// MailConfig holds SMTP settings for result notifications.
type MailConfig struct {
	Enable bool   `json:"enable"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	User   string `json:"user"`
	Pass   string `json:"pass"`
	From   string `json:"from"`
}

// JobsConfig holds job-manager settings.
type JobsConfig struct {
	StaleAfter        time.Duration `json:"stale_after"`
	Workers           int           `json:"workers" validate:"gt=0"`
	NotifyDedupWindow time.Duration `json:"notify_dedup_window"`
	ImageAttemptLimit int           `json:"image_attempt_limit" validate:"gt=0"`
}

// Tuning holds the business-tuned heuristics. These are product constants,
// not derived values; they ship as data so they can be adjusted per deploy.
type Tuning struct {
	// RefusalPhrases are matched as prefixes of the lower-cased reply.
	RefusalPhrases []string `json:"refusal_phrases"`
	// Legacy free-text word windows: first pass and final acceptance.
	LegacyMinWords      int `json:"legacy_min_words"`
	LegacyMaxWords      int `json:"legacy_max_words"`
	LegacyExtendBelow   int `json:"legacy_extend_below"`
	LegacyFinalMinWords int `json:"legacy_final_min_words"`
	LegacyFinalMaxWords int `json:"legacy_final_max_words"`
	// MaxMissingSections is the ceiling on tolerated missing sections.
	MaxMissingSections int `json:"max_missing_sections"`
}

// Config is the root configuration, loadable from a JSON file with
// environment overrides applied on top.
type Config struct {
	Port        int           `json:"port" validate:"gt=0,lte=65535"`
	DatabaseURL string        `json:"database_url" validate:"required"`
	RedisURL    string        `json:"redis_url" validate:"required"`
	Model       ModelConfig   `json:"model"`
	Credits     CreditsConfig `json:"credits"`
	Mail        MailConfig    `json:"mail"`
	Jobs        JobsConfig    `json:"jobs"`
	Tuning      Tuning        `json:"tuning"`
}

// Default returns the configuration defaults, including the tuned heuristics.
func Default() *Config {
	return &Config{
		Port: 8080,
		Model: ModelConfig{
			Endpoint:    "https://api.openai.com",
			Model:       "gpt-4o",
			VisionModel: "gpt-4o",
			MaxTokens:   4096,
			Temperature: 0.8,
		},
		Credits: CreditsConfig{
			ServiceSlug: "readings",
			CacheTTL:    30 * time.Second,
		},
		Jobs: JobsConfig{
			StaleAfter:        5 * time.Minute,
			Workers:           4,
			NotifyDedupWindow: 2 * time.Minute,
			ImageAttemptLimit: 3,
		},
		Tuning: Tuning{
			RefusalPhrases: []string{
				"i'm sorry",
				"i am sorry",
				"i apologize",
				"i cannot",
				"i can't",
				"cannot assist",
				"as an ai",
				"i'm unable",
				"i am unable",
				"unfortunately, i cannot",
			},
			LegacyMinWords:      500,
			LegacyMaxWords:      1500,
			LegacyExtendBelow:   700,
			LegacyFinalMinWords: 650,
			LegacyFinalMaxWords: 1600,
			MaxMissingSections:  2,
		},
	}
}

// Load reads configuration from an optional JSON file, applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("MODEL_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv("MODEL_ENDPOINT"); v != "" {
		c.Model.Endpoint = v
	}
	if v := os.Getenv("MODEL_MOCK_ENDPOINT"); v != "" {
		c.Model.MockMode = true
		c.Model.MockEndpoint = v
	}
	if v := os.Getenv("CREDITS_BASE_URL"); v != "" {
		c.Credits.BaseURL = v
	}
	if v := os.Getenv("CREDITS_API_KEY"); v != "" {
		c.Credits.APIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !c.Model.MockMode && c.Model.APIKey == "" {
		return fmt.Errorf("config error: model api key is required unless mock mode is active")
	}
	if c.Model.MockMode && c.Model.MockEndpoint == "" {
		return fmt.Errorf("config error: mock mode requires a mock endpoint")
	}
	if len(c.Tuning.RefusalPhrases) == 0 {
		return fmt.Errorf("config error: refusal phrase list must not be empty")
	}
	if c.Tuning.LegacyFinalMinWords > c.Tuning.LegacyMinWords {
		return fmt.Errorf("config error: final word floor must not exceed the first-pass floor")
	}
	return nil
}
