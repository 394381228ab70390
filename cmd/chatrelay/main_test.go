package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/chatrelay/internal/config"
	"github.com/flemzord/chatrelay/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderStarter(t *testing.T) {
	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "")
	tests := []struct {
		name    string
		params  starterParams
		modules []string
	}{
		{
			name:    "polling sqlite",
			params:  starterParams{Provider: "openai", Assistant: "blueme", Mode: "polling", History: "sqlite"},
			modules: []string{"channel.telegram", "history.sqlite", "provider.openai", "retention"},
		},
		{
			name: "webhook redis",
			params: starterParams{
				Provider: "gemini", Assistant: "ayu", Mode: "webhook",
				WebhookURL: "https://bot.example.com/webhooks/telegram", Bind: "0.0.0.0:8443",
				History: "redis", RedisAddr: "redis:6379",
			},
			modules: []string{"channel.telegram", "gateway.http", "history.redis", "provider.gemini", "retention"},
		},
		{
			name:    "memory anthropic",
			params:  starterParams{Provider: "anthropic", Assistant: "blueme", Mode: "polling", History: "memory"},
			modules: []string{"channel.telegram", "history.memory", "provider.anthropic", "retention"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderStarter(&buf, tt.params))

			cfg, err := config.Parse(buf.Bytes())
			require.NoError(t, err, buf.String())
			require.NoError(t, config.Validate(cfg))
			assert.Equal(t, tt.params.Assistant, cfg.Assistant)
			assert.Equal(t, tt.params.Provider, cfg.Provider)
			for _, id := range tt.modules {
				assert.Contains(t, cfg.Modules, id)
			}
			assert.NotContains(t, buf.String(), "api_key")
			assert.NotContains(t, buf.String(), "token:")
		})
	}
}

func TestRenderPersonas(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderPersonas(&buf, starterParams{Assistant: "ayu"}))

	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	set, err := persona.Load(path)
	require.NoError(t, err)
	require.NoError(t, set.Require("ayu"))
	prompt, err := set.Prompt("ayu")
	require.NoError(t, err)
	assert.Contains(t, prompt, "You are ayu")
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name    string
		g       globals
		wantErr string
	}{
		{name: "defaults", g: globals{logLevel: "info", logFormat: "auto"}},
		{name: "console debug", g: globals{logLevel: "DEBUG", logFormat: "console"}},
		{name: "json", g: globals{logLevel: "warn", logFormat: "json"}},
		{name: "bad level", g: globals{logLevel: "loud", logFormat: "json"}, wantErr: "--log-level"},
		{name: "bad format", g: globals{logLevel: "info", logFormat: "xml"}, wantErr: "--log-format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.g.logger(&bytes.Buffer{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLogger_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	g := globals{logLevel: "info", logFormat: "auto"}
	logger, err := g.logger(&buf)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chatrelay dev")
	assert.Contains(t, out, "channel.telegram")
	assert.Contains(t, out, "provider.openai")
}

func TestConfigCheck(t *testing.T) {
	dir := t.TempDir()
	personas := filepath.Join(dir, "personas.yaml")
	require.NoError(t, os.WriteFile(personas, []byte("blueme: You are Blueme.\n"), 0o600))
	cfgPath := filepath.Join(dir, "chatrelay.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
version: "1"
assistant: blueme
provider: openai
personas_file: `+personas+`
data_dir: `+dir+`
modules:
  history.memory: {}
  provider.openai:
    api_key: sk-test
  channel.telegram:
    token: "123456:check"
`), 0o600))

	out, err := execute(t, "config", "check", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK (4 modules)")
	assert.Contains(t, out, "history.memory")
	assert.Contains(t, out, "dispatch")
}

func TestConfigCheck_MissingFile(t *testing.T) {
	_, err := execute(t, "config", "check", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}

func TestInit_NonInteractive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatrelay.yaml")

	out, err := execute(t, "init", path, "--interactive=false", "--provider", "gemini", "--history", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Contains(t, cfg.Modules, "history.memory")
	assert.FileExists(t, filepath.Join(dir, config.DefaultPersonasFile))

	_, err = execute(t, "init", path, "--interactive=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", path, "--interactive=false", "--force", "--provider", "anthropic")
	require.NoError(t, err)
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
}

func TestInit_RejectsBadFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrelay.yaml")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "provider", args: []string{"--provider", "llama"}, want: "unknown provider"},
		{name: "history", args: []string{"--history", "mongo"}, want: "unknown history"},
		{name: "webhook url", args: []string{"--mode", "webhook", "--webhook-url", "http://x"}, want: "--webhook-url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"init", path, "--interactive=false"}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NoFileExists(t, path)
		})
	}
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "unknown", statusText(0))
}
