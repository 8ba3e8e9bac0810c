package state

import (
	"time"

	"vigil/internal/appstate"
	"vigil/internal/health"
	"vigil/internal/metrics"
)

type Page int

const (
	PageMenu Page = iota
	PageDashboard
	PageIssues  // "Active Issues"
	PageConsole // "Console Output"
	PageMetrics // "Resource Telemetry"
)

// AppState holds the current snapshot of the monitored application.
type AppState struct {
	Health      *health.Report
	Metrics     *metrics.Snapshot
	Totals      metrics.Totals
	Issues      []appstate.Issue
	LastUpdate  time.Time
	Err         error
	CPUHistory  []float64
	MemHistory  []float64
	ConsoleLogs []string
	CurrentPage Page
}
