package logging

import "time"

// Config contains configurable parameters for the logging facade.
// Use DefaultConfig() to get sensible defaults, then override as needed.
type Config struct {
	Dir      string // Directory for log files (required)
	MinLevel Level  // Minimum level written to the combined log (default: Info)

	FlushInterval time.Duration // How often buffered entries are flushed (default: 5s)
	MaxFileSize   int64         // Rotation threshold per file in bytes (default: 5MB)
	MaxRotations  int           // Numbered backups kept per file (default: 5)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		MinLevel:      LevelInfo,
		FlushInterval: 5 * time.Second,
		MaxFileSize:   5 * 1024 * 1024,
		MaxRotations:  5,
	}
}

// WithMinLevel returns a copy of the config with modified minimum level.
func (c Config) WithMinLevel(l Level) Config {
	c.MinLevel = l
	return c
}

// WithFlushInterval returns a copy of the config with modified flush interval.
func (c Config) WithFlushInterval(d time.Duration) Config {
	c.FlushInterval = d
	return c
}

// WithMaxFileSize returns a copy of the config with modified rotation threshold.
func (c Config) WithMaxFileSize(n int64) Config {
	c.MaxFileSize = n
	return c
}

// WithMaxRotations returns a copy of the config with modified backup count.
func (c Config) WithMaxRotations(n int) Config {
	c.MaxRotations = n
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	if c.Dir == "" {
		return &ConfigError{Field: "Dir", Message: "must not be empty"}
	}
	if c.FlushInterval <= 0 {
		return &ConfigError{Field: "FlushInterval", Message: "must be positive"}
	}
	if c.MaxFileSize <= 0 {
		return &ConfigError{Field: "MaxFileSize", Message: "must be positive"}
	}
	if c.MaxRotations < 0 {
		return &ConfigError{Field: "MaxRotations", Message: "must not be negative"}
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
