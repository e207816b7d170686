package slack

import (
	"fmt"
	"net/url"
	"time"
)

// Slack rejects section text over 3000 characters.
const maxSectionText = 3000

// Config holds the Slack channel configuration.
type Config struct {
	BotToken         string        `yaml:"bot_token"`
	SigningSecret    string        `yaml:"signing_secret"`
	APIURL           string        `yaml:"api_url"`
	Timeout          time.Duration `yaml:"timeout"`
	AllowUsers       []string      `yaml:"allow_users"`
	AllowTeams       []string      `yaml:"allow_teams"`
	MaxSectionLength int           `yaml:"max_section_length"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxSectionLength == 0 {
		c.MaxSectionLength = 2900
	}
}

func (c *Config) validate() error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("slack: api_url must be a valid http/https URL, got %q", c.APIURL)
		}
	}
	if c.MaxSectionLength < 100 || c.MaxSectionLength > maxSectionText {
		return fmt.Errorf("slack: max_section_length must be 100-%d, got %d", maxSectionText, c.MaxSectionLength)
	}
	if c.Timeout > 2*time.Minute {
		return fmt.Errorf("slack: timeout must be at most 2m, got %s", c.Timeout)
	}
	return nil
}

// restricted reports whether a responder allow-list is configured.
func (c *Config) restricted() bool {
	return len(c.AllowUsers) > 0 || len(c.AllowTeams) > 0
}
