package detector

import "time"

// Config contains configurable parameters for the issue detector.
// Use DefaultConfig() to get sensible defaults, then override as needed.
type Config struct {
	// Evaluation settings
	Interval time.Duration // How often rules are evaluated (default: 5s)

	// Auto-recovery settings
	AutoRecover         bool          // Whether persisting issues trigger their first action (default: true)
	RecoveryBackoffBase time.Duration // First retry delay after a failed recovery (default: 10s)
	RecoveryBackoffMax  time.Duration // Backoff ceiling (default: 5m)
	MaxRecoveryAttempts int           // Attempts per issue before giving up (default: 5)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:            5 * time.Second,
		AutoRecover:         true,
		RecoveryBackoffBase: 10 * time.Second,
		RecoveryBackoffMax:  5 * time.Minute,
		MaxRecoveryAttempts: 5,
	}
}

// WithInterval returns a copy of the config with modified evaluation interval.
func (c Config) WithInterval(d time.Duration) Config {
	c.Interval = d
	return c
}

// WithAutoRecover returns a copy of the config with auto-recovery enabled/disabled.
func (c Config) WithAutoRecover(enabled bool) Config {
	c.AutoRecover = enabled
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return &ConfigError{Field: "Interval", Message: "must be positive"}
	}
	if c.AutoRecover {
		if c.RecoveryBackoffBase <= 0 {
			return &ConfigError{Field: "RecoveryBackoffBase", Message: "must be positive"}
		}
		if c.RecoveryBackoffMax < c.RecoveryBackoffBase {
			return &ConfigError{Field: "RecoveryBackoffMax", Message: "must be >= RecoveryBackoffBase"}
		}
		if c.MaxRecoveryAttempts <= 0 {
			return &ConfigError{Field: "MaxRecoveryAttempts", Message: "must be positive"}
		}
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
