package health

// Thresholds defines the hard limits per scored dimension. A dimension
// exceeding 80% of its limit costs half its penalty; exceeding the limit
// costs the full penalty and raises an alert.
type Thresholds struct {
	CPUPercent     float64
	MemoryPercent  float64
	ResponseTimeMs float64
	ErrorRatePct   float64
}

// DefaultThresholds returns the default scoring thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUPercent:     80.0,
		MemoryPercent:  85.0,
		ResponseTimeMs: 1000.0,
		ErrorRatePct:   5.0,
	}
}
