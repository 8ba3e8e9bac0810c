// Package mcpserver exposes the monitoring core over the Model Context
// Protocol so AI assistants can inspect health, inspect issues, and run
// recovery actions.
package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"vigil/internal/advisor"
	"vigil/internal/appstate"
	"vigil/internal/archive"
	"vigil/internal/detector"
	"vigil/internal/diagnostics"
	"vigil/internal/health"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/monitor"
)

// Config holds configuration for the MCP server.
type Config struct {
	ServerName    string
	ServerVersion string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServerName:    "vigil",
		ServerVersion: "1.0.0",
	}
}

// Server wraps the MCP server with the monitoring core's capabilities.
type Server struct {
	mcpServer *mcp.Server
	monitor   *monitor.Monitor
	store     *appstate.Store
	detector  *detector.Detector
	repo      *archive.Repo
	generator *diagnostics.Generator
	advisor   *advisor.Advisor // nil when no API key is configured
	log       *logging.Logger
}

// NewServer creates a new MCP server instance. adv may be nil; the
// explain_health tool is only registered when it is present.
func NewServer(cfg Config, mon *monitor.Monitor, store *appstate.Store, det *detector.Detector, repo *archive.Repo, gen *diagnostics.Generator, adv *advisor.Advisor, log *logging.Logger) (*Server, error) {
	if mon == nil || store == nil || det == nil || repo == nil || gen == nil || log == nil {
		return nil, fmt.Errorf("monitor, store, detector, repo, generator, and logger are required")
	}
	if cfg.ServerName == "" {
		cfg = DefaultConfig()
	}

	impl := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}
	s := &Server{
		mcpServer: mcp.NewServer(impl, nil),
		monitor:   mon,
		store:     store,
		detector:  det,
		repo:      repo,
		generator: gen,
		advisor:   adv,
		log:       log,
	}
	s.registerTools()
	return s, nil
}

// ============================================================================
// TOOL ARGUMENT / RESULT TYPES
// ============================================================================

// HealthArgs defines the input for get_health tool.
type HealthArgs struct{}

// HealthResult wraps the health report for tool output.
type HealthResult struct {
	Report health.Report `json:"report" jsonschema:"current health report"`
}

// MetricsArgs defines the input for get_realtime_metrics tool.
type MetricsArgs struct{}

// ActiveIssuesArgs defines the input for get_active_issues tool.
type ActiveIssuesArgs struct {
	Category string `json:"category,omitempty" jsonschema:"filter by subsystem: camera, obs, windows, or system"`
}

// ActiveIssuesResult wraps the active issue list.
type ActiveIssuesResult struct {
	Issues []appstate.Issue `json:"issues" jsonschema:"currently active issues"`
}

// RecoveryArgs defines the input for run_recovery_action tool.
type RecoveryArgs struct {
	IssueID  string `json:"issue_id" jsonschema:"ID of the active issue"`
	ActionID string `json:"action_id" jsonschema:"ID of the recovery action to run"`
}

// HistoricalSnapshotsArgs defines the input for get_historical_snapshots tool.
type HistoricalSnapshotsArgs struct {
	SinceMinutes int `json:"since_minutes,omitempty" jsonschema:"only snapshots from the last N minutes"`
	Limit        int `json:"limit,omitempty" jsonschema:"number of snapshots to return"`
}

// HistoricalSnapshotsResult wraps archived snapshot results.
type HistoricalSnapshotsResult struct {
	Snapshots []archive.SnapshotRecord `json:"snapshots" jsonschema:"archived health snapshots"`
}

// IssueEventsArgs defines the input for get_issue_events tool.
type IssueEventsArgs struct {
	Category string `json:"category,omitempty" jsonschema:"filter by subsystem"`
	Limit    int    `json:"limit,omitempty" jsonschema:"number of events to return"`
}

// IssueEventsResult wraps archived issue transitions.
type IssueEventsResult struct {
	Events []archive.IssueEvent `json:"events" jsonschema:"issue lifecycle events"`
}

// DiagnosticsArgs defines the input for generate_diagnostics tool.
type DiagnosticsArgs struct{}

// DiagnosticsResult reports where the diagnostic bundle was written.
type DiagnosticsResult struct {
	Path   string        `json:"path" jsonschema:"path of the written report"`
	Health health.Report `json:"health" jsonschema:"health report included in the bundle"`
}

// ExplainArgs defines the input for explain_health tool.
type ExplainArgs struct {
	Question string `json:"question,omitempty" jsonschema:"the question to ask about application health"`
}

// ExplainResult defines the output for explain_health tool.
type ExplainResult struct {
	Answer string `json:"answer" jsonschema:"AI-generated answer"`
}

// ============================================================================
// TOOL REGISTRATION
// ============================================================================

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_health",
		Description: "Get the current health report: a 0-100 score, status tier (healthy/warning/error/critical), threshold breaches, and alert details.",
	}, s.handleGetHealth)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_realtime_metrics",
		Description: "Collect a fresh resource snapshot right now: system CPU, memory, load averages, and process CPU/RSS/heap. Use when you need current data rather than the last scheduled sample.",
	}, s.handleGetRealtimeMetrics)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_active_issues",
		Description: "List the currently active issues with severity, message, remediation suggestion, and the recovery actions available for each. Optionally filter by subsystem (camera, obs, windows, system).",
	}, s.handleGetActiveIssues)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "run_recovery_action",
		Description: "Run a recovery action attached to an active issue, e.g. reconnect-camera or reload-webview. Returns a structured outcome; a failure code explains why the action never ran.",
	}, s.handleRunRecoveryAction)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_historical_snapshots",
		Description: "Query archived health snapshots for time-series analysis: score, status, resource usage, and request counters over time.",
	}, s.handleGetHistoricalSnapshots)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_issue_events",
		Description: "Query archived issue lifecycle events (detected/resolved transitions with durations) for trend analysis.",
	}, s.handleGetIssueEvents)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "generate_diagnostics",
		Description: "Generate a full diagnostic bundle (health report, recent metrics, active issues, log tails, counters) and write it to a timestamped JSON file.",
	}, s.handleGenerateDiagnostics)

	if s.advisor != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "explain_health",
			Description: "Ask questions about application health, active issues, and which recovery actions to run. Uses AI reasoning over the live health context.",
		}, s.handleExplainHealth)
	}
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleGetHealth(ctx context.Context, _ *mcp.CallToolRequest, _ HealthArgs) (*mcp.CallToolResult, HealthResult, error) {
	report, _, _ := s.monitor.Current(ctx)
	return nil, HealthResult{Report: *report}, nil
}

func (s *Server) handleGetRealtimeMetrics(ctx context.Context, _ *mcp.CallToolRequest, _ MetricsArgs) (*mcp.CallToolResult, *metrics.Snapshot, error) {
	snap, err := s.monitor.CollectOnce(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to collect metrics: %w", err)
	}
	return nil, snap, nil
}

func (s *Server) handleGetActiveIssues(ctx context.Context, _ *mcp.CallToolRequest, args ActiveIssuesArgs) (*mcp.CallToolResult, ActiveIssuesResult, error) {
	issues := s.detector.ActiveIssues()
	if args.Category != "" {
		filtered := issues[:0]
		for _, iss := range issues {
			if iss.Category == args.Category {
				filtered = append(filtered, iss)
			}
		}
		issues = filtered
	}
	return nil, ActiveIssuesResult{Issues: issues}, nil
}

func (s *Server) handleRunRecoveryAction(ctx context.Context, _ *mcp.CallToolRequest, args RecoveryArgs) (*mcp.CallToolResult, detector.ActionOutcome, error) {
	if args.IssueID == "" || args.ActionID == "" {
		return nil, detector.ActionOutcome{}, fmt.Errorf("issue_id and action_id are required")
	}
	outcome := s.detector.ExecuteIssueAction(ctx, args.IssueID, args.ActionID)
	return nil, outcome, nil
}

func (s *Server) handleGetHistoricalSnapshots(ctx context.Context, _ *mcp.CallToolRequest, args HistoricalSnapshotsArgs) (*mcp.CallToolResult, HistoricalSnapshotsResult, error) {
	var since time.Time
	if args.SinceMinutes > 0 {
		since = time.Now().Add(-time.Duration(args.SinceMinutes) * time.Minute)
	}
	snapshots, err := s.repo.QuerySnapshots(ctx, since, args.Limit)
	if err != nil {
		return nil, HistoricalSnapshotsResult{}, fmt.Errorf("failed to query snapshots: %w", err)
	}
	return nil, HistoricalSnapshotsResult{Snapshots: snapshots}, nil
}

func (s *Server) handleGetIssueEvents(ctx context.Context, _ *mcp.CallToolRequest, args IssueEventsArgs) (*mcp.CallToolResult, IssueEventsResult, error) {
	events, err := s.repo.QueryIssueEvents(ctx, args.Category, args.Limit)
	if err != nil {
		return nil, IssueEventsResult{}, fmt.Errorf("failed to query issue events: %w", err)
	}
	return nil, IssueEventsResult{Events: events}, nil
}

func (s *Server) handleGenerateDiagnostics(ctx context.Context, _ *mcp.CallToolRequest, _ DiagnosticsArgs) (*mcp.CallToolResult, DiagnosticsResult, error) {
	path, report, err := s.generator.Generate(ctx)
	if err != nil {
		return nil, DiagnosticsResult{}, fmt.Errorf("failed to generate diagnostics: %w", err)
	}
	return nil, DiagnosticsResult{Path: path, Health: report.Health}, nil
}

func (s *Server) handleExplainHealth(ctx context.Context, _ *mcp.CallToolRequest, args ExplainArgs) (*mcp.CallToolResult, ExplainResult, error) {
	report, snap, _ := s.monitor.Current(ctx)
	answer, err := s.advisor.Explain(ctx, args.Question, advisor.Context{
		Health:  *report,
		Metrics: snap,
		Issues:  s.store.Get().Issues,
	})
	if err != nil {
		return nil, ExplainResult{}, fmt.Errorf("explain failed: %w", err)
	}
	return nil, ExplainResult{Answer: answer}, nil
}

// Start starts the MCP server using stdio transport. Blocks until the
// client disconnects or ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("mcp server starting on stdio")
	transport := &mcp.StdioTransport{}
	return s.mcpServer.Run(ctx, transport)
}
