package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "hlbroker"

// ResolveConfigPath searches for a config file in standard locations:
// $XDG_CONFIG_HOME/hlbroker/hlbroker.yaml, then
// ~/.config/hlbroker/hlbroker.yaml, then ./hlbroker.yaml.
func ResolveConfigPath() (string, error) {
	candidates := ConfigCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// ConfigCandidates lists the searched config paths in priority order.
func ConfigCandidates() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, appName, appName+".yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", appName, appName+".yaml"))
	}
	return append(candidates, appName+".yaml")
}

// DefaultConfigPath is where `init` writes a new configuration.
func DefaultConfigPath() string {
	return ConfigCandidates()[0]
}

// DefaultDataDir returns $XDG_DATA_HOME/hlbroker, or
// ~/.local/share/hlbroker when XDG_DATA_HOME is unset.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}
