// Package diagnostics composes point-in-time diagnostic reports from the
// monitor, the issue buckets, and the log files. Read-only: generating a
// report never mutates the state it describes.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vigil/internal/appstate"
	"vigil/internal/health"
	"vigil/internal/logging"
	"vigil/internal/metrics"
)

// How much context one report carries.
const (
	recentSnapshots = 20
	tailLines       = 50
)

// Millisecond precision keeps reports generated within the same second
// from overwriting each other.
const reportStampLayout = "2006-01-02T15-04-05.000Z"

// Report is a full diagnostic bundle.
type Report struct {
	GeneratedAt time.Time                    `json:"generatedAt"`
	Health      health.Report                `json:"health"`
	Metrics     []*metrics.Snapshot          `json:"metrics"`
	Counters    metrics.Totals               `json:"counters"`
	Issues      map[string][]appstate.Issue  `json:"issues"`
	ErrorCounts map[string]int               `json:"errorCounts"`
	LogTails    map[string][]json.RawMessage `json:"logTails"`
}

// HealthSource produces the current health report.
type HealthSource interface {
	Current(ctx context.Context) (*health.Report, *metrics.Snapshot, metrics.Totals)
}

// Generator wires the report sources together.
type Generator struct {
	dir     string
	source  HealthSource
	history *metrics.History
	store   *appstate.Store
	log     *logging.Logger
}

// NewGenerator creates a generator writing reports into dir.
func NewGenerator(dir string, source HealthSource, history *metrics.History, store *appstate.Store, log *logging.Logger) (*Generator, error) {
	if dir == "" {
		return nil, fmt.Errorf("diagnostics directory required")
	}
	if source == nil || history == nil || store == nil || log == nil {
		return nil, fmt.Errorf("health source, history, store, and logger are required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create diagnostics directory: %w", err)
	}
	return &Generator{dir: dir, source: source, history: history, store: store, log: log}, nil
}

// Compose builds a report without writing it.
func (g *Generator) Compose(ctx context.Context) *Report {
	report, _, totals := g.source.Current(ctx)

	tails := make(map[string][]json.RawMessage, len(logging.Categories))
	for _, cat := range logging.Categories {
		lines := g.log.Tail(cat, tailLines)
		raw := make([]json.RawMessage, 0, len(lines))
		for _, line := range lines {
			if json.Valid([]byte(line)) {
				raw = append(raw, json.RawMessage(line))
			}
		}
		tails[cat] = raw
	}

	return &Report{
		GeneratedAt: time.Now(),
		Health:      *report,
		Metrics:     g.history.Recent(recentSnapshots),
		Counters:    totals,
		Issues:      g.store.Get().Issues,
		ErrorCounts: g.log.ErrorCounts(),
		LogTails:    tails,
	}
}

// Generate composes a report and writes it to a timestamped file,
// returning the file path.
func (g *Generator) Generate(ctx context.Context) (string, *Report, error) {
	report := g.Compose(ctx)

	stamp := report.GeneratedAt.UTC().Format(reportStampLayout)
	path := filepath.Join(g.dir, "diagnostic-report-"+stamp+".json")

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode diagnostic report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", nil, fmt.Errorf("write %s: %w", path, err)
	}

	g.log.Info("diagnostic report generated", "path", path)
	return path, report, nil
}
