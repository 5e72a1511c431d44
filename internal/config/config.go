package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghostbot/ghostbot/internal/adapters/discord"
	"github.com/ghostbot/ghostbot/internal/adapters/github"
	"github.com/ghostbot/ghostbot/internal/autoclose"
	"github.com/ghostbot/ghostbot/internal/filter"
	"github.com/ghostbot/ghostbot/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Version   string            `yaml:"version"`
	Discord   *discord.Config   `yaml:"discord"`
	GitHub    *github.Config    `yaml:"github"`
	Mentions  *MentionsConfig   `yaml:"mentions"`
	Filter    *filter.Config    `yaml:"filter"`
	Autoclose *autoclose.Config `yaml:"autoclose"`
	Logging   *logging.Config   `yaml:"logging"`
}

// MentionsConfig holds entity mention settings
type MentionsConfig struct {
	EntityTTR     time.Duration `yaml:"entity_ttr"`
	OwnerTTR      time.Duration `yaml:"owner_ttr"`
	ButtonTimeout time.Duration `yaml:"button_timeout"`
	StaleAfter    time.Duration `yaml:"stale_after"`
	SnapshotSize  int           `yaml:"snapshot_size"` // recent messages kept to diff edits against
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Discord: discord.DefaultConfig(),
		GitHub:  github.DefaultConfig(),
		Mentions: &MentionsConfig{
			EntityTTR:     30 * time.Minute,
			OwnerTTR:      time.Hour,
			ButtonTimeout: 30 * time.Second,
			StaleAfter:    24 * time.Hour,
			SnapshotSize:  1000,
		},
		Filter:    filter.DefaultConfig(),
		Autoclose: autoclose.DefaultConfig(),
		Logging:   logging.DefaultConfig(),
	}
}

// envOverrides maps environment variables to the fields they set.
var envOverrides = []struct {
	name  string
	field func(*Config) *string
}{
	{"BOT_TOKEN", func(c *Config) *string { return &c.Discord.BotToken }},
	{"BOT_GUILD_ID", func(c *Config) *string { return &c.Discord.GuildID }},
	{"BOT_MOD_ROLE_ID", func(c *Config) *string { return &c.Discord.ModRoleID }},
	{"BOT_LOG_CHANNEL_ID", func(c *Config) *string { return &c.Discord.LogChannelID }},
	{"BOT_HELP_CHANNEL_ID", func(c *Config) *string { return &c.Autoclose.HelpChannelID }},
	{"BOT_SHOWCASE_CHANNEL_ID", func(c *Config) *string { return &c.Filter.ShowcaseChannelID }},
	{"BOT_MEDIA_CHANNEL_ID", func(c *Config) *string { return &c.Filter.MediaChannelID }},
	{"GITHUB_TOKEN", func(c *Config) *string { return &c.GitHub.Token }},
	{"GITHUB_ORG", func(c *Config) *string { return &c.GitHub.Org }},
}

// LoadDotEnv loads variables from .env files into the environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from a file, then applies environment overrides
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config.fillDefaults()
	config.ApplyEnv(os.LookupEnv)

	if output := config.Logging.Output; output != "stdout" && output != "stderr" {
		config.Logging.Output = expandPath(output)
	}

	return config, nil
}

// fillDefaults restores sections a config file set to null.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.Discord == nil {
		c.Discord = d.Discord
	}
	if c.GitHub == nil {
		c.GitHub = d.GitHub
	}
	if c.Mentions == nil {
		c.Mentions = d.Mentions
	}
	if c.Filter == nil {
		c.Filter = d.Filter
	}
	if c.Autoclose == nil {
		c.Autoclose = d.Autoclose
	}
	if c.Logging == nil {
		c.Logging = d.Logging
	}
}

// ApplyEnv overrides fields from environment variables that lookup reports as set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	c.fillDefaults()
	for _, o := range envOverrides {
		if v, ok := lookup(o.name); ok && v != "" {
			*o.field(c) = v
		}
	}
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".ghostbot", "config.yaml")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// ValidateGitHub checks the settings needed to resolve mentions.
func (c *Config) ValidateGitHub() error {
	if c.GitHub == nil {
		return fmt.Errorf("github configuration is required")
	}
	if c.GitHub.Token == "" {
		return fmt.Errorf("github token is required (set GITHUB_TOKEN)")
	}
	if c.GitHub.Org == "" {
		return fmt.Errorf("github org is required")
	}
	if c.GitHub.Repos[github.MainRepoKey] == "" {
		return fmt.Errorf("github.repos.%s is required", github.MainRepoKey)
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid github requests_per_second: %v", c.GitHub.RequestsPerSecond)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord == nil {
		return fmt.Errorf("discord configuration is required")
	}
	if c.Discord.BotToken == "" {
		return fmt.Errorf("discord token is required (set BOT_TOKEN)")
	}
	if c.Discord.GuildID == "" {
		return fmt.Errorf("discord guild_id is required (set BOT_GUILD_ID)")
	}
	if err := c.ValidateGitHub(); err != nil {
		return err
	}

	m := c.Mentions
	if m == nil {
		return fmt.Errorf("mentions configuration is required")
	}
	if m.EntityTTR <= 0 || m.OwnerTTR <= 0 || m.ButtonTimeout <= 0 || m.StaleAfter <= 0 {
		return fmt.Errorf("mentions durations must be positive")
	}
	if m.SnapshotSize < 1 {
		return fmt.Errorf("invalid mentions snapshot_size: %d", m.SnapshotSize)
	}

	if a := c.Autoclose; a != nil && a.Enabled {
		if a.Schedule == "" {
			return fmt.Errorf("autoclose schedule is required when autoclose is enabled")
		}
		if a.IdleFor <= 0 {
			return fmt.Errorf("invalid autoclose idle_for: %s", a.IdleFor)
		}
	}
	return nil
}
