package config

// LoggingConfig configures the categorized file-based trace logger
// (internal/logging): lityc passes Level, DebugMode and Categories to it.
// Format and File are not read by lityc, and its zap-based operational
// logger takes only the --verbose flag.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, console
	File       string          `yaml:"file" json:"file,omitempty"`
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode,omitempty"` // master toggle for the categorized trace logger
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // per-category toggles
}

// IsCategoryEnabled returns whether the categorized trace logger should
// write entries for category. Disabled entirely unless DebugMode is set.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
