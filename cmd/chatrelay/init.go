package main

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/chatrelay/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var (
		force       bool
		interactive bool
		p           = starterParams{
			Provider:  "openai",
			Assistant: "blueme",
			Mode:      "polling",
			Bind:      "0.0.0.0:8080",
			History:   "sqlite",
			RedisAddr: "localhost:6379",
		}
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return errors.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}
			if interactive {
				if err := runWizard(&p); err != nil {
					return err
				}
			}
			if err := checkStarter(p); err != nil {
				return err
			}

			written, err := writeStarter(path, p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range written {
				fmt.Fprintf(out, "wrote %s\n", f)
			}
			fmt.Fprintf(out, "\nNext: export TELEGRAM_BOT_TOKEN and the %s API key, then run\n  chatrelay start -c %s\n", p.Provider, path)
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&force, "force", false, "Overwrite an existing configuration")
	f.BoolVar(&interactive, "interactive", true, "Ask with a form; false uses the flags below")
	f.StringVar(&p.Provider, "provider", p.Provider, "LLM provider (openai, gemini, anthropic)")
	f.StringVar(&p.Assistant, "assistant", p.Assistant, "Persona name")
	f.StringVar(&p.Mode, "mode", p.Mode, "Telegram delivery (polling, webhook)")
	f.StringVar(&p.WebhookURL, "webhook-url", "", "Public https URL of /webhooks/telegram (webhook mode)")
	f.StringVar(&p.History, "history", p.History, "History storage (sqlite, redis, memory)")
	return cmd
}

func runWizard(p *starterParams) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM provider").
				Options(
					huh.NewOption("OpenAI (gpt-4o-mini)", "openai"),
					huh.NewOption("Google Gemini", "gemini"),
					huh.NewOption("Anthropic Claude", "anthropic"),
				).
				Value(&p.Provider),
			huh.NewInput().
				Title("Persona").
				Description("Name of the system prompt in resources/system_prompts.yaml").
				Value(&p.Assistant).
				Validate(nonEmpty("persona")),
			huh.NewSelect[string]().
				Title("Telegram delivery").
				Options(
					huh.NewOption("Long polling", "polling"),
					huh.NewOption("Webhook (needs a public https URL)", "webhook"),
				).
				Value(&p.Mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Webhook URL").
				Placeholder("https://bot.example.com/webhooks/telegram").
				Value(&p.WebhookURL).
				Validate(httpsURL),
			huh.NewInput().
				Title("Gateway listen address").
				Value(&p.Bind),
		).WithHideFunc(func() bool { return p.Mode != "webhook" }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Conversation storage").
				Options(
					huh.NewOption("SQLite file", "sqlite"),
					huh.NewOption("Redis", "redis"),
					huh.NewOption("In memory (lost on restart)", "memory"),
				).
				Value(&p.History),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Redis address").
				Value(&p.RedisAddr).
				Validate(nonEmpty("address")),
		).WithHideFunc(func() bool { return p.History != "redis" }),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("init aborted")
		}
		return errors.Wrap(err, "init wizard")
	}
	return nil
}

func nonEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func httpsURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errors.New("must be an https URL")
	}
	return nil
}

// checkStarter validates answers given as flags.
func checkStarter(p starterParams) error {
	switch p.Provider {
	case "openai", "gemini", "anthropic":
	default:
		return errors.Errorf("unknown provider %q", p.Provider)
	}
	switch p.History {
	case "sqlite", "redis", "memory":
	default:
		return errors.Errorf("unknown history storage %q", p.History)
	}
	switch p.Mode {
	case "polling":
	case "webhook":
		if err := httpsURL(p.WebhookURL); err != nil {
			return errors.Wrap(err, "--webhook-url")
		}
	default:
		return errors.Errorf("unknown telegram mode %q", p.Mode)
	}
	return nonEmpty("assistant")(p.Assistant)
}

// writeStarter writes the configuration and, when missing, a personas file
// next to it. It returns the files written.
func writeStarter(path string, p starterParams) ([]string, error) {
	var buf bytes.Buffer
	if err := renderStarter(&buf, p); err != nil {
		return nil, errors.Wrap(err, "rendering configuration")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return nil, errors.Wrap(err, "writing configuration")
	}
	written := []string{path}

	personas := filepath.Join(filepath.Dir(path), config.DefaultPersonasFile)
	if _, err := os.Stat(personas); err == nil {
		return written, nil
	}
	buf.Reset()
	if err := renderPersonas(&buf, p); err != nil {
		return nil, errors.Wrap(err, "rendering personas")
	}
	if err := os.MkdirAll(filepath.Dir(personas), 0o750); err != nil {
		return nil, errors.Wrap(err, "creating personas directory")
	}
	if err := os.WriteFile(personas, buf.Bytes(), 0o600); err != nil {
		return nil, errors.Wrap(err, "writing personas")
	}
	return append(written, personas), nil
}
