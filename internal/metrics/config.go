package metrics

import "time"

// Config contains configurable parameters for the metrics collector.
// Use DefaultConfig() to get sensible defaults, then override as needed.
type Config struct {
	// Collection settings
	CollectInterval time.Duration // How often a snapshot is collected (default: 30s)
	SampleWindow    time.Duration // CPU sampling window per collection (default: 100ms)

	// History settings
	Retention           time.Duration // How long snapshots are kept (default: 24h)
	MaintenanceInterval time.Duration // How often old snapshots are pruned (default: 1h)

	// Counter settings
	CounterCap uint64 // Cap-and-decay threshold per counter group (default: 1_000_000)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CollectInterval:     30 * time.Second,
		SampleWindow:        100 * time.Millisecond,
		Retention:           24 * time.Hour,
		MaintenanceInterval: time.Hour,
		CounterCap:          1_000_000,
	}
}

// WithCollectInterval returns a copy of the config with modified collect interval.
func (c Config) WithCollectInterval(d time.Duration) Config {
	c.CollectInterval = d
	return c
}

// WithSampleWindow returns a copy of the config with modified CPU sample window.
func (c Config) WithSampleWindow(d time.Duration) Config {
	c.SampleWindow = d
	return c
}

// WithRetention returns a copy of the config with modified history retention.
func (c Config) WithRetention(d time.Duration) Config {
	c.Retention = d
	return c
}

// Validate checks if the configuration is valid and returns an error if not.
func (c Config) Validate() error {
	if c.CollectInterval <= 0 {
		return &ConfigError{Field: "CollectInterval", Message: "must be positive"}
	}
	if c.SampleWindow <= 0 {
		return &ConfigError{Field: "SampleWindow", Message: "must be positive"}
	}
	if c.SampleWindow >= c.CollectInterval {
		return &ConfigError{Field: "SampleWindow", Message: "must be shorter than CollectInterval"}
	}
	if c.Retention <= 0 {
		return &ConfigError{Field: "Retention", Message: "must be positive"}
	}
	if c.MaintenanceInterval <= 0 {
		return &ConfigError{Field: "MaintenanceInterval", Message: "must be positive"}
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
