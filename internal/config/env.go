package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every chatrelay environment variable.
const EnvPrefix = "CHATRELAY"

// Keys of the environment overlay. Each binds CHATRELAY_<KEY> plus any
// legacy names, first set wins.
const (
	keyAssistant       = "assistant"
	keyProvider        = "provider"
	keyPersonasFile    = "personas_file"
	keySanitizer       = "sanitizer"
	keyWorkers         = "workers"
	keyDispatchTimeout = "dispatch_timeout"
	keyDataDir         = "data_dir"
	keyTelegramMode    = "telegram_mode"
	keyWebhookURL      = "webhook_url"
	keyHistory         = "history"
	keyBind            = "bind"
)

var legacyEnv = map[string][]string{
	keyAssistant:    {"ASSISTANT_NAME"},
	keyProvider:     {"PROVIDER"},
	keyTelegramMode: {"TELEGRAM_MODE"},
	keyWebhookURL:   {"WEBHOOK_URL"},
}

const telegramModule = "channel.telegram"

func newEnv() *viper.Viper {
	v := viper.New()
	for _, key := range []string{
		keyAssistant, keyProvider, keyPersonasFile, keySanitizer, keyWorkers,
		keyDispatchTimeout, keyDataDir, keyTelegramMode, keyWebhookURL, keyHistory, keyBind,
	} {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(key)}, legacyEnv[key]...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
	return v
}

// ApplyEnv overlays environment variables onto cfg. PROVIDER is matched
// case-insensitively and TELEGRAM_MODE=longpolling means polling, so the
// variables of earlier single-binary deployments keep working.
func ApplyEnv(cfg *Config) error {
	v := newEnv()

	if v.IsSet(keyAssistant) {
		cfg.Assistant = v.GetString(keyAssistant)
	}
	if v.IsSet(keyProvider) {
		cfg.Provider = strings.ToLower(v.GetString(keyProvider))
	}
	if v.IsSet(keyPersonasFile) {
		cfg.PersonasFile = v.GetString(keyPersonasFile)
	}
	if v.IsSet(keySanitizer) {
		cfg.Sanitizer = v.GetString(keySanitizer)
	}
	if v.IsSet(keyDataDir) {
		cfg.DataDir = v.GetString(keyDataDir)
	}
	if v.IsSet(keyWorkers) {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(keyWorkers)))
		if err != nil {
			return fmt.Errorf("config: %s_WORKERS: %w", EnvPrefix, err)
		}
		cfg.Workers = n
	}
	if v.IsSet(keyDispatchTimeout) {
		cfg.DispatchTimeout = v.GetDuration(keyDispatchTimeout)
	}

	if v.IsSet(keyTelegramMode) || v.IsSet(keyWebhookURL) {
		if cfg.Modules == nil {
			cfg.Modules = map[string]yaml.Node{}
		}
		node := cfg.Modules[telegramModule]
		if v.IsSet(keyTelegramMode) {
			setScalar(&node, "mode", normalizeMode(v.GetString(keyTelegramMode)))
		}
		if v.IsSet(keyWebhookURL) {
			setScalar(&node, "webhook_url", v.GetString(keyWebhookURL))
		}
		cfg.Modules[telegramModule] = node
	}
	return nil
}

// Synthesize builds a configuration from the environment alone: telegram,
// the provider named by PROVIDER and SQLite history (or the store named by
// CHATRELAY_HISTORY). Webhook mode adds the gateway that receives updates.
func Synthesize() (*Config, error) {
	cfg := &Config{Version: "1", Modules: map[string]yaml.Node{}}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	v := newEnv()
	store := "sqlite"
	if v.IsSet(keyHistory) {
		store = v.GetString(keyHistory)
	}
	cfg.Modules["history."+store] = emptyMap()
	if cfg.Provider != "" {
		cfg.Modules[cfg.ProviderModule()] = emptyMap()
	}
	if _, ok := cfg.Modules[telegramModule]; !ok {
		cfg.Modules[telegramModule] = emptyMap()
	}

	if mode, _ := scalar(cfg.Modules[telegramModule], "mode"); mode == "webhook" {
		gw := emptyMap()
		bind := "0.0.0.0:8080"
		if v.IsSet(keyBind) {
			bind = v.GetString(keyBind)
		}
		setScalar(&gw, "bind", bind)
		cfg.Modules["gateway.http"] = gw
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func normalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "longpolling" {
		return "polling"
	}
	return mode
}

func emptyMap() yaml.Node {
	return yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// setScalar sets key to a string value in a mapping node, creating the
// mapping if node is empty.
func setScalar(node *yaml.Node, key, value string) {
	setTagged(node, key, value, "!!str")
}

func setTagged(node *yaml.Node, key, value, tag string) {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		*node = *node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		*node = emptyMap()
	}
	val := &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = val
			return
		}
	}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
}

func scalar(node yaml.Node, key string) (string, bool) {
	if node.Kind != yaml.MappingNode {
		return "", false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1].Value, true
		}
	}
	return "", false
}
