package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = ".gsu.yaml"

// SiteConfig holds configuration for a single Gerrit site.
type SiteConfig struct {
	URL          string `yaml:"url"`
	Username     string `yaml:"username,omitempty"`
	HTTPPassword string `yaml:"http-password,omitempty"`
	VerifyTLS    bool   `yaml:"verify-tls,omitempty"`
}

// Config is the top-level configuration structure.
type Config struct {
	CurrentSite string                `yaml:"current-site,omitempty"`
	Sites       map[string]SiteConfig `yaml:"sites,omitempty"`
}

// configPath returns the path to the config file.
func configPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}

// Load reads the config file and returns a Config.
func Load() (*Config, error) {
	data, err := os.ReadFile(configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Sites: map[string]SiteConfig{}}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Sites == nil {
		cfg.Sites = map[string]SiteConfig{}
	}
	return &cfg, nil
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(configPath(), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Resolve returns the SiteConfig to use based on priority:
// 1. named site (from --site flag or GERRIT_SITE env)
// 2. current-site in config
// 3. inline parameters (passed separately by the caller)
func (c *Config) Resolve(siteName string) (*SiteConfig, string, error) {
	if siteName == "" {
		siteName = os.Getenv("GERRIT_SITE")
	}
	if siteName == "" {
		siteName = c.CurrentSite
	}
	if siteName == "" {
		return nil, "", fmt.Errorf("no site selected — run 'gsu site use <name>' or set GERRIT_SITE")
	}

	site, ok := c.Sites[siteName]
	if !ok {
		return nil, "", fmt.Errorf("site %q not found in config", siteName)
	}
	return &site, siteName, nil
}
