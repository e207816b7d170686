package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} references, which is how
// secrets such as the Slack signing secret reach the broker config.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// UnresolvedEnvError lists the variables referenced by the broker config
// that have neither a value in the environment nor a default.
type UnresolvedEnvError struct {
	Names []string
}

func (e *UnresolvedEnvError) Error() string {
	return "unresolved variables: " + strings.Join(e.Names, ", ")
}

// Load reads the broker's YAML file, substitutes environment references and
// decodes it. Unknown top-level keys are rejected so that a misspelled
// section (say "notfy:") fails at startup instead of silently falling back to
// defaults. Module sections are decoded later by their owning module.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read broker config %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: %s has no content", path)
		}
		return nil, fmt.Errorf("config: decode broker config %s: %w", path, err)
	}
	return &cfg, nil
}

// expandEnv substitutes every reference in raw. Missing variables are
// collected, de-duplicated and reported together in an *UnresolvedEnvError.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []string

	out := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return match
	})

	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &UnresolvedEnvError{Names: missing}
	}
	return out, nil
}
