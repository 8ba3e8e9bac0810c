// Package health derives a 0-100 health score and status tier from the
// latest metrics snapshot and performance counters. Score is a pure
// function of its inputs; alert deduplication across ticks is the
// caller's concern.
package health

import (
	"fmt"
	"time"

	"vigil/internal/metrics"
)

// ============================================================================
// DATA STRUCTURES
// ============================================================================

// Status tiers.
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusError    = "error"
	StatusCritical = "critical"
)

// Report is the derived health value for one evaluation.
type Report struct {
	Status    string    `json:"status"`
	Score     int       `json:"score"`
	Issues    []string  `json:"issues"`
	Alerts    []Alert   `json:"alerts,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert marks one dimension breaching its hard threshold. Emitted once per
// evaluation where the breach holds.
type Alert struct {
	Type      string  `json:"type"`
	Level     string  `json:"level"`
	Message   string  `json:"message"`
	Threshold float64 `json:"threshold"`
	Current   float64 `json:"current"`
}

// Penalty weights per dimension. Full penalty above the threshold, half
// penalty above 80% of it.
const (
	penaltyCPU      = 25
	penaltyMemory   = 25
	penaltyResponse = 20
	penaltyErrors   = 30
)

// ============================================================================
// SCORING
// ============================================================================

type dimension struct {
	name      string
	current   float64
	threshold float64
	penalty   int
	unit      string
}

// Score computes the health report for one metrics snapshot and counter
// totals against the given thresholds. A nil snapshot scores as critical
// with a dedicated issue, so a stalled collector is itself visible.
func Score(m *metrics.Snapshot, c metrics.Totals, t Thresholds) Report {
	now := time.Now()
	if m == nil {
		return Report{
			Status:    StatusCritical,
			Score:     0,
			Issues:    []string{"no metrics snapshot available"},
			Timestamp: now,
		}
	}

	dims := []dimension{
		{"cpu", m.CPUPercent, t.CPUPercent, penaltyCPU, "%"},
		{"memory", m.MemPercent, t.MemoryPercent, penaltyMemory, "%"},
		{"response_time", c.AvgResponseMs, t.ResponseTimeMs, penaltyResponse, "ms"},
		{"error_rate", c.ErrorRatePct, t.ErrorRatePct, penaltyErrors, "%"},
	}

	score := 100
	var issues []string
	var alerts []Alert

	for _, d := range dims {
		switch {
		case d.current > d.threshold:
			score -= d.penalty
			issues = append(issues, fmt.Sprintf("%s above threshold: %.1f%s (limit %.1f%s)",
				d.name, d.current, d.unit, d.threshold, d.unit))
			alerts = append(alerts, Alert{
				Type:      d.name,
				Level:     StatusCritical,
				Message:   fmt.Sprintf("%s breached its threshold", d.name),
				Threshold: d.threshold,
				Current:   d.current,
			})
		case d.current > d.threshold*0.8:
			score -= d.penalty / 2
			issues = append(issues, fmt.Sprintf("%s elevated: %.1f%s (limit %.1f%s)",
				d.name, d.current, d.unit, d.threshold, d.unit))
		}
	}

	if score < 0 {
		score = 0
	}

	return Report{
		Status:    statusFor(score),
		Score:     score,
		Issues:    issues,
		Alerts:    alerts,
		Timestamp: now,
	}
}

func statusFor(score int) string {
	switch {
	case score >= 90:
		return StatusHealthy
	case score >= 70:
		return StatusWarning
	case score >= 50:
		return StatusError
	default:
		return StatusCritical
	}
}
