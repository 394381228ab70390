// Package config handles YAML configuration loading, environment variable
// expansion and overlay, and structural validation for chatrelay.
package config

import (
	"strconv"
	"time"

	"github.com/flemzord/chatrelay/internal/history"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Assistant names the active persona in the personas file.
	Assistant string `yaml:"assistant"`

	// Provider selects the LLM backend: the name part of a provider.* module
	// (openai, gemini, anthropic). Only that provider module is loaded.
	Provider string `yaml:"provider"`

	// PersonasFile is the YAML map of persona name to system prompt.
	PersonasFile string `yaml:"personas_file"`

	// Sanitizer names the reply escape table (telegram, telegram_strict).
	Sanitizer string `yaml:"sanitizer"`

	// Window bounds the history sent with each request and kept on disk.
	Window history.Policy `yaml:"window"`

	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	StoreTimeout    time.Duration `yaml:"store_timeout"`

	// Workers caps concurrently processed chats.
	Workers int `yaml:"workers"`

	// DataDir holds module data such as the SQLite database.
	DataDir string `yaml:"data_dir"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// Defaults applied by ApplyDefaults.
const (
	DefaultPersonasFile = "resources/system_prompts.yaml"
	DefaultSanitizer    = "telegram"
	DefaultDataDir      = "data"
)

// ApplyDefaults fills unset top-level fields. Module defaults belong to the
// modules themselves.
func (c *Config) ApplyDefaults() {
	if c.PersonasFile == "" {
		c.PersonasFile = DefaultPersonasFile
	}
	if c.Sanitizer == "" {
		c.Sanitizer = DefaultSanitizer
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.Modules == nil {
		c.Modules = map[string]yaml.Node{}
	}
	if c.Workers > 0 {
		node := c.Modules[DispatchModule]
		setTagged(&node, "workers", strconv.Itoa(c.Workers), "!!int")
		c.Modules[DispatchModule] = node
	}
}

// DispatchModule owns the shared chat queue. It is always loaded; the
// top-level workers setting is copied into its configuration.
const DispatchModule = "dispatch"

// ProviderModule returns the module ID of the selected provider.
func (c *Config) ProviderModule() string {
	return "provider." + c.Provider
}
