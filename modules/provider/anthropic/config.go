package anthropic

import (
	"fmt"
	"os"
	"time"
)

// defaultModel is the model used when none is specified.
const defaultModel = "claude-sonnet-4-5-20250929"

const (
	defaultMaxTokens = 1024
	defaultTimeout   = 60 * time.Second
)

// Config holds the YAML-decoded configuration for the Anthropic provider.
type Config struct {
	// APIKey falls back to the variable named by APIKeyEnv, then to
	// ANTHROPIC_API_KEY.
	APIKey      string        `yaml:"api_key"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.APIKey == "" {
		env := c.APIKeyEnv
		if env == "" {
			env = "ANTHROPIC_API_KEY"
		}
		c.APIKey = os.Getenv(env)
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

func (c *Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("provider.anthropic: api_key is required (or set ANTHROPIC_API_KEY)")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider.anthropic: max_tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}
