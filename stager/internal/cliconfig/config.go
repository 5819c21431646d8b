// Package cliconfig stores cdcctl connection profiles.
package cliconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultProfileName is the profile every fresh config starts with.
const DefaultProfileName = "default"

// Config is the on-disk profile set.
type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	path           string
}

// Profile holds the endpoints of one environment. Empty fields inherit
// DefaultProfile.
type Profile struct {
	Brokers     []string `yaml:"brokers,omitempty"`
	TopicPrefix string   `yaml:"topic_prefix,omitempty"`
	RedisURL    string   `yaml:"redis_url,omitempty"`
	LedgerKey   string   `yaml:"ledger_key_prefix,omitempty"`
	StagingRoot string   `yaml:"staging_root,omitempty"`
	Prefix      string   `yaml:"prefix,omitempty"`
}

// DefaultProfile points at a local compose stack.
func DefaultProfile() *Profile {
	return &Profile{
		Brokers:     []string{"localhost:9092"},
		TopicPrefix: "postgres-source.public",
		RedisURL:    "redis://localhost:6379/0",
		LedgerKey:   "cdc",
		StagingRoot: "/var/lib/telhawk/staging",
		Prefix:      "debezium",
	}
}

func (p Profile) withDefaults() Profile {
	def := DefaultProfile()
	if len(p.Brokers) == 0 {
		p.Brokers = def.Brokers
	}
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&p.TopicPrefix, def.TopicPrefix)
	fill(&p.RedisURL, def.RedisURL)
	fill(&p.LedgerKey, def.LedgerKey)
	fill(&p.StagingRoot, def.StagingRoot)
	fill(&p.Prefix, def.Prefix)
	return p
}

func Default() *Config {
	return &Config{
		CurrentProfile: DefaultProfileName,
		Profiles:       map[string]*Profile{DefaultProfileName: DefaultProfile()},
	}
}

// DefaultPath is $HOME/.cdcctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".cdcctl", "config.yaml"), nil
}

// Load reads path, or DefaultPath when path is empty. A missing file
// yields Default bound to that path.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	return cfg, nil
}

// Path is where Save writes.
func (c *Config) Path() string { return c.path }

// Save replaces the file atomically with mode 0600.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// SaveProfile stores p under name, makes it current and saves.
func (c *Config) SaveProfile(name string, p *Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = p
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile resolves name, or the current profile when name is empty,
// with defaults filled in.
func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	p, ok := c.Profiles[name]
	if !ok || p == nil {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	merged := p.withDefaults()
	return &merged, nil
}

func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveProfile deletes name and saves. Removing the current profile
// switches to the default profile when it remains, else to none.
func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(c.Profiles, name)

	if c.CurrentProfile == name {
		c.CurrentProfile = ""
		if _, ok := c.Profiles[DefaultProfileName]; ok {
			c.CurrentProfile = DefaultProfileName
		}
	}
	return c.Save()
}
