package persist

import "time"

// Config contains configurable parameters for the persistence engine.
// Use DefaultConfig() to get sensible defaults, then override as needed.
type Config struct {
	Dir string // Directory holding all persisted files (required)

	DebounceWindow   time.Duration // Quiet period after a state change before saving (default: 1s)
	AutosaveInterval time.Duration // Unconditional save interval (default: 30s)
	MaxBackups       int           // Rotating backups kept (default: 10)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		DebounceWindow:   time.Second,
		AutosaveInterval: 30 * time.Second,
		MaxBackups:       10,
	}
}

// WithDebounceWindow returns a copy of the config with modified debounce window.
func (c Config) WithDebounceWindow(d time.Duration) Config {
	c.DebounceWindow = d
	return c
}

// WithAutosaveInterval returns a copy of the config with modified autosave interval.
func (c Config) WithAutosaveInterval(d time.Duration) Config {
	c.AutosaveInterval = d
	return c
}

// WithMaxBackups returns a copy of the config with modified backup count.
func (c Config) WithMaxBackups(n int) Config {
	c.MaxBackups = n
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	if c.Dir == "" {
		return &ConfigError{Field: "Dir", Message: "must not be empty"}
	}
	if c.DebounceWindow <= 0 {
		return &ConfigError{Field: "DebounceWindow", Message: "must be positive"}
	}
	if c.AutosaveInterval <= 0 {
		return &ConfigError{Field: "AutosaveInterval", Message: "must be positive"}
	}
	if c.MaxBackups < 1 {
		return &ConfigError{Field: "MaxBackups", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Message
}
