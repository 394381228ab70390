package gemini

import (
	"fmt"
	"os"
	"time"
)

const (
	defaultModel           = "gemini-1.5-flash-002"
	defaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	defaultTemperature     = 0.75
	defaultTopP            = 0.95
	defaultTopK            = 40
	defaultMaxOutputTokens = 8192
	defaultTimeout         = "60s"
)

// Config holds the configuration for the Gemini provider module.
type Config struct {
	// APIKey falls back to GEMINI_API_KEY.
	APIKey          string   `yaml:"api_key"`
	Model           string   `yaml:"model"`
	BaseURL         string   `yaml:"base_url"`
	Temperature     *float64 `yaml:"temperature"`
	TopP            *float64 `yaml:"top_p"`
	TopK            int      `yaml:"top_k"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
	Timeout         string   `yaml:"timeout"`

	// SafetyThreshold applies to every harm category. Defaults to
	// BLOCK_NONE.
	SafetyThreshold string `yaml:"safety_threshold"`
}

func (c *Config) defaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Temperature == nil {
		v := defaultTemperature
		c.Temperature = &v
	}
	if c.TopP == nil {
		v := defaultTopP
		c.TopP = &v
	}
	if c.TopK == 0 {
		c.TopK = defaultTopK
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = defaultMaxOutputTokens
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
	if c.SafetyThreshold == "" {
		c.SafetyThreshold = "BLOCK_NONE"
	}
}

func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return time.Minute
	}
	return d
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("provider.gemini: api_key is required (or set GEMINI_API_KEY)")
	}
	if c.MaxOutputTokens < 0 || c.TopK < 0 {
		return fmt.Errorf("provider.gemini: top_k and max_output_tokens must be positive")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.gemini: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
