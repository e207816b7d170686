package config

import (
	"cmp"
	"slices"
	"strings"
)

// namespaceRank orders modules so providers load before consumers:
// stores first, then channels, then everything else, with the gateway last.
// Stop runs in reverse, so the gateway drains before the store closes.
var namespaceRank = map[string]int{
	"store":   0,
	"channel": 1,
	"gateway": 3,
}

// Resolve returns the module IDs from the configuration in load order.
// The deterministic order ensures consistent module loading.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := namespaceRank[ns]; ok {
		return r
	}
	return 2
}
