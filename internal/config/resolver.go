package config

import (
	"cmp"
	"slices"
	"strings"
)

// loadRank orders module namespaces so that services exist before the
// modules that look them up during Provision.
var loadRank = map[string]int{
	"telemetry": 0,
	"history":   1,
	"provider":  2,
	"dispatch":  3,
	"gateway":   4,
	"retention": 5,
	"channel":   6,
}

func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := loadRank[ns]; ok {
		return r
	}
	return len(loadRank)
}

// Resolve returns the module IDs to load, in load order. Of the provider
// modules only the selected one is kept; it is added when the file has no
// entry for it, since providers run on defaults plus an API key from the
// environment. The dispatch module is always loaded. Ties are broken
// alphabetically for a deterministic order.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules)+1)
	for id := range cfg.Modules {
		if strings.HasPrefix(id, "provider.") && id != cfg.ProviderModule() {
			continue
		}
		ids = append(ids, id)
	}
	if cfg.Provider != "" && !slices.Contains(ids, cfg.ProviderModule()) {
		ids = append(ids, cfg.ProviderModule())
	}
	if !slices.Contains(ids, DispatchModule) {
		ids = append(ids, DispatchModule)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}
