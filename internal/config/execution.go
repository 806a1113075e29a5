package config

// ExecutionConfig configures one firing driver run.
type ExecutionConfig struct {
	// MaxIterations bounds fireAllRules; 0 means unbounded, matching the
	// engine's own lack of a termination guarantee.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations,omitempty"`

	// DefaultTimeout is a duration for a single fireAllRules invocation,
	// parsed by GetDefaultTimeout; lityc does not apply it.
	DefaultTimeout string `yaml:"default_timeout" json:"default_timeout,omitempty"`

	// RuleDirs are directories scanned for rule source files at startup;
	// the hot-reload watcher watches only the first one.
	RuleDirs []string `yaml:"rule_dirs" json:"rule_dirs,omitempty"`

	// RuleFileExt is the file extension the loader recognizes; the
	// watcher always matches ".rule".
	RuleFileExt string `yaml:"rule_file_ext" json:"rule_file_ext,omitempty"`
}
