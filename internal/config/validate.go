package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/sanitize"
)

// Validate checks the structural validity of a Config: the version, the
// relay settings and the module set. Semantic checks belong to each
// module's Validate.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Assistant == "" {
		errs = append(errs, errors.New("config: assistant is required (or set ASSISTANT_NAME)"))
	}

	errs = append(errs, validateProvider(cfg)...)
	errs = append(errs, validateSettings(cfg)...)
	errs = append(errs, validateModules(cfg)...)

	return errors.Join(errs...)
}

func validateProvider(cfg *Config) []error {
	if cfg.Provider == "" {
		return []error{errors.New("config: provider is required (or set PROVIDER)")}
	}
	if _, ok := core.GetModule(cfg.ProviderModule()); !ok {
		var known []string
		for _, info := range core.GetModulesByNamespace("provider") {
			known = append(known, info.ID.Name())
		}
		return []error{fmt.Errorf("config: unknown provider %q (known: %s)", cfg.Provider, strings.Join(known, ", "))}
	}
	return nil
}

func validateSettings(cfg *Config) []error {
	var errs []error

	if cfg.Sanitizer != "" {
		if _, err := sanitize.Lookup(cfg.Sanitizer); err != nil {
			errs = append(errs, fmt.Errorf("config: sanitizer: %w", err))
		}
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("config: workers must be non-negative, got %d", cfg.Workers))
	}
	if cfg.DispatchTimeout < 0 || cfg.StoreTimeout < 0 {
		errs = append(errs, errors.New("config: timeouts must be non-negative"))
	}

	w := cfg.Window
	if w.MaxTurns < 0 || w.KeepTurns < 0 || w.MaxAge < 0 {
		errs = append(errs, errors.New("config: window values must be non-negative"))
	}
	if eff := w.WithDefaults(); eff.KeepTurns < eff.MaxTurns {
		errs = append(errs, fmt.Errorf("config: window.keep_turns (%d) must be at least window.max_turns (%d)", eff.KeepTurns, eff.MaxTurns))
	}
	return errs
}

func validateModules(cfg *Config) []error {
	var errs []error
	var histories, channels []string

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		switch core.ModuleID(id).Namespace() {
		case "history":
			histories = append(histories, id)
		case "channel":
			channels = append(channels, id)
		}
	}

	switch len(histories) {
	case 0:
		errs = append(errs, errors.New("config: a history module is required (history.sqlite, history.redis or history.memory)"))
	case 1:
	default:
		errs = append(errs, fmt.Errorf("config: exactly one history module may be configured, got %d", len(histories)))
	}
	if len(channels) == 0 {
		errs = append(errs, errors.New("config: at least one channel module must be configured"))
	}
	return errs
}
