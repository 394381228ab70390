package openai

import (
	"fmt"
	"os"
	"time"
)

const (
	defaultModel               = "gpt-4o-mini"
	defaultBaseURL             = "https://api.openai.com/v1"
	defaultMaxCompletionTokens = 500
	defaultTemperature         = 0.7
	defaultTimeout             = "60s"
)

// Config holds the configuration for the OpenAI provider module.
type Config struct {
	// APIKey falls back to OPENAI_API_KEY.
	APIKey              string   `yaml:"api_key"`
	Model               string   `yaml:"model"`
	BaseURL             string   `yaml:"base_url"`
	MaxCompletionTokens int      `yaml:"max_completion_tokens"`
	Temperature         *float64 `yaml:"temperature"`
	Timeout             string   `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.MaxCompletionTokens == 0 {
		c.MaxCompletionTokens = defaultMaxCompletionTokens
	}
	if c.Temperature == nil {
		t := defaultTemperature
		c.Temperature = &t
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validate.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return time.Minute
	}
	return d
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("provider.openai: api_key is required (or set OPENAI_API_KEY)")
	}
	if c.MaxCompletionTokens < 0 {
		return fmt.Errorf("provider.openai: max_completion_tokens must be positive, got %d", c.MaxCompletionTokens)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("provider.openai: invalid timeout %q: %w", c.Timeout, err)
	}
	return nil
}
