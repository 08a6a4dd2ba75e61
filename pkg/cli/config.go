package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"phish-merge/internal/config"
)

// UserConfig represents ~/.phishmerge/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile" json:"current_profile"`
	Profiles       map[string]Profile `yaml:"profiles" json:"profiles"`
}

// Profile represents a single named configuration profile.
type Profile struct {
	BaseDir     string   `yaml:"base-dir,omitempty" json:"base_dir,omitempty"`
	Ledger      string   `yaml:"ledger,omitempty" json:"ledger,omitempty"`
	Publish     []string `yaml:"publish,omitempty" json:"publish,omitempty"`
	MetricsFile string   `yaml:"metrics-file,omitempty" json:"metrics_file,omitempty"`
	Schedule    string   `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Output      string   `yaml:"output,omitempty" json:"output,omitempty"`
}

// ActiveProfile returns the profile to use based on the override or current-profile.
func (c *UserConfig) ActiveProfile(override string) Profile {
	name := c.CurrentProfile
	if override != "" {
		name = override
	}
	if p, ok := c.Profiles[name]; ok {
		return p
	}
	return Profile{}
}

// ConfigDir returns the path to ~/.phishmerge/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".phishmerge")
}

// ConfigPath returns the path to ~/.phishmerge/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.phishmerge/config.yaml.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// SaveUserConfig writes ~/.phishmerge/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}

// applyProfile fills settings the environment left unset from p.
// Precedence is flag > env > profile > default; flags are applied later
// by each command.
func applyProfile(cfg *config.Config, p Profile) {
	if os.Getenv("PHISHMERGE_BASE_DIR") == "" && p.BaseDir != "" {
		cfg.BaseDir = p.BaseDir
	}
	if os.Getenv("LEDGER_DB_PATH") == "" && p.Ledger != "" {
		cfg.LedgerPath = p.Ledger
	}
	if os.Getenv("PUBLISH_TARGETS") == "" && len(p.Publish) > 0 {
		cfg.PublishTargets = p.Publish
	}
	if os.Getenv("METRICS_FILE") == "" && p.MetricsFile != "" {
		cfg.MetricsFile = p.MetricsFile
	}
	if os.Getenv("MERGE_SCHEDULE") == "" && p.Schedule != "" {
		cfg.Schedule = p.Schedule
	}
}
