// Package config handles CLI deployment target configuration.
//
// Config is stored at $XDG_CONFIG_HOME/siteup/config.yaml (defaults to
// ~/.config/siteup/config.yaml) and follows the kubeconfig pattern: named
// targets with a current-target selector.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Target describes one deployable site: where it is built and where it is
// hosted. Empty build settings fall back to the standard npm toolchain and
// dist/ output.
type Target struct {
	ProjectDir string   `yaml:"project-dir"`
	Install    []string `yaml:"install,omitempty"`
	Build      []string `yaml:"build,omitempty"`
	OutputDir  string   `yaml:"output-dir,omitempty"`

	Container     string `yaml:"container,omitempty"`
	IndexDocument string `yaml:"index-document,omitempty"`
	ErrorDocument string `yaml:"error-document,omitempty"`

	// Bucket and Region locate the S3 bucket the site is uploaded to.
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region,omitempty"`

	// StackDir and Stack locate the Pulumi stack holding the provisioned
	// hosting resources.
	StackDir string `yaml:"stack-dir"`
	Stack    string `yaml:"stack"`

	StorageResource string `yaml:"storage-resource,omitempty"`
	StorageOutput   string `yaml:"storage-output,omitempty"`
	SiteResource    string `yaml:"site-resource,omitempty"`
	SiteOutput      string `yaml:"site-output,omitempty"`
}

// Config holds named deployment targets and the current selection.
type Config struct {
	CurrentTarget string            `yaml:"current-target"`
	Targets       map[string]Target `yaml:"targets"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/siteup/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "siteup", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "siteup", "config.yaml")
}

// Load reads the config file. If the file does not exist, an empty Config
// is returned (not an error).
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Targets: make(map[string]Target)}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Targets == nil {
		cfg.Targets = make(map[string]Target)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Current returns the current target name and value.
// The bool is false when no current target is set.
func (c *Config) Current() (string, Target, bool) {
	if c.CurrentTarget == "" {
		return "", Target{}, false
	}
	t, ok := c.Targets[c.CurrentTarget]
	if !ok {
		return "", Target{}, false
	}
	return c.CurrentTarget, t, true
}

// Use sets the current target. It returns an error if the name doesn't exist.
func (c *Config) Use(name string) error {
	if _, ok := c.Targets[name]; !ok {
		return fmt.Errorf("target %q not found", name)
	}
	c.CurrentTarget = name
	return nil
}

// Set adds or updates a named target.
func (c *Config) Set(name string, t Target) {
	c.Targets[name] = t
}

// Remove deletes a target. If it was the current target, current-target is
// cleared. Returns an error if the name doesn't exist.
func (c *Config) Remove(name string) error {
	if _, ok := c.Targets[name]; !ok {
		return fmt.Errorf("target %q not found", name)
	}
	delete(c.Targets, name)
	if c.CurrentTarget == name {
		c.CurrentTarget = ""
	}
	return nil
}
