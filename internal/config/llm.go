package config

import (
	"fmt"
	"os"
	"time"
)

// LLMConfig defines the OpenAI-compatible endpoint used for categorization.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`     // Provider type: "openai", "openai-compatible"
	Model       string        `mapstructure:"model"`        // Model name/ID
	APIKey      string        `mapstructure:"api_key"`      // API key (can be set directly or via env var)
	APIKeyEnv   string        `mapstructure:"api_key_env"`  // Environment variable name for API key
	BaseURL     string        `mapstructure:"base_url"`     // Base URL for OpenAI-compatible APIs
	BaseURLEnv  string        `mapstructure:"base_url_env"` // Environment variable name for base URL
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ResolveEnvVars resolves environment variable references in the configuration.
// Direct values (APIKey, BaseURL) take precedence if already set.
func (c *LLMConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
	if c.BaseURLEnv != "" && c.BaseURL == "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
}

// Validate checks that the classifier endpoint has all required fields.
func (c *LLMConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("llm config: model is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("llm config: base_url is required")
	}
	switch c.Provider {
	case "", "openai", "openai-compatible":
	default:
		return fmt.Errorf("llm config: unknown provider %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm config: temperature %.2f out of range", c.Temperature)
	}
	return nil
}

// ValidateWithAPIKey validates the configuration including API key requirement.
// Use this when the classifier will actually be called.
func (c *LLMConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("llm config: api_key is required (set directly or via OPENAI_API_KEY)")
	}
	return nil
}

// Validate checks pipeline tunables for values that would break step semantics.
func (c *PipelineConfig) Validate() error {
	if c.StatusRetries < 1 {
		return fmt.Errorf("pipeline config: status_retries must be at least 1")
	}
	if c.WindowDays < 2 {
		return fmt.Errorf("pipeline config: window_days must be at least 2")
	}
	if c.TopTitles <= 0 {
		return fmt.Errorf("pipeline config: top_titles must be positive")
	}
	if c.OutlierMultiple <= 0 {
		return fmt.Errorf("pipeline config: outlier_multiple must be positive")
	}
	for i := 1; i < len(c.OutlierTiers); i++ {
		if c.OutlierTiers[i] <= c.OutlierTiers[i-1] {
			return fmt.Errorf("pipeline config: outlier_tiers must be ascending")
		}
	}
	return nil
}
