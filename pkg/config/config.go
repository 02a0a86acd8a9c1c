// Package config handles configuration for scenario-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither a flag nor the config file sets a value.
const (
	DefaultBaseURL         = "https://todomvc.com/examples/vue/dist/"
	DefaultTimeout         = 5 * time.Second
	DefaultScenarioTimeout = 60 * time.Second
	DefaultBrowser         = "chromium"
	DefaultParallel        = 1
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Scenario selection
	Scenarios   []string `yaml:"scenarios"`   // Files or directories
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Target
	BaseURL string `yaml:"baseUrl"`

	// Execution settings
	Timeout         time.Duration     `yaml:"timeout"`         // Assertion polling window, e.g. "5s"
	ScenarioTimeout time.Duration     `yaml:"scenarioTimeout"` // Whole-scenario limit
	Retries         int               `yaml:"retries"`
	Parallel        int               `yaml:"parallel"`
	Env             map[string]string `yaml:"env"` // Variables for ${...} expansion

	// Browser settings
	Browser  string `yaml:"browser"`  // chromium, firefox, webkit
	Headless *bool  `yaml:"headless"` // Unset means headless
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ScenarioTimeout <= 0 {
		c.ScenarioTimeout = DefaultScenarioTimeout
	}
	if c.Parallel <= 0 {
		c.Parallel = DefaultParallel
	}
	if c.Browser == "" {
		c.Browser = DefaultBrowser
	}
	if c.Headless == nil {
		headless := true
		c.Headless = &headless
	}
}

// IsHeadless reports the effective headless setting.
func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", c.Retries)
	}
	if c.Parallel < 0 {
		return fmt.Errorf("parallel must be >= 0, got %d", c.Parallel)
	}
	if c.Timeout < 0 || c.ScenarioTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes config.yaml content. path is only used in errors.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
// A directory without one yields an empty config.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}
	return &Config{}, nil
}
