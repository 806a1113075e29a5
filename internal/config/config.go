// Package config implements the engine's YAML configuration: a
// DefaultConfig/Load/Save layering with environment-variable overrides
// applied after parsing, using gopkg.in/yaml.v3 tagging, scoped to the
// settings a rule-engine contract host actually needs (execution
// bounds, rule source directories, resource limits, logging).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine host's configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Execution  ExecutionConfig `yaml:"execution"`
	CoreLimits CoreLimits      `yaml:"core_limits"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "lity",
		Version: "0.1.0",

		Execution: ExecutionConfig{
			MaxIterations:  0, // unbounded by default; firing has no termination guarantee
			DefaultTimeout: "30s",
			RuleDirs:       []string{"rules"},
			RuleFileExt:    ".rule",
		},

		CoreLimits: CoreLimits{
			MaxFactsInTable:        1_000_000,
			MaxConcurrentContracts: 4,
			MaxSessionDurationMin:  10,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "lity.log",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// (with environment overrides still applied) if the file doesn't exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies LITY_-prefixed environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LITY_RULE_DIRS"); v != "" {
		c.Execution.RuleDirs = filepath.SplitList(v)
	}
	if v := os.Getenv("LITY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LITY_MAX_ITERATIONS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			c.Execution.MaxIterations = n
		}
	}
}

// GetDefaultTimeout returns Execution.DefaultTimeout as a duration,
// falling back to 30s on a malformed value.
func (c *Config) GetDefaultTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.CoreLimits.Validate(); err != nil {
		return err
	}
	if len(c.Execution.RuleDirs) == 0 {
		return fmt.Errorf("execution.rule_dirs must name at least one directory")
	}
	return nil
}
