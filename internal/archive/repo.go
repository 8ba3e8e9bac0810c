package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// =============================================================================
// SCHEMA SQL
// =============================================================================

// DuckDB is columnar and loves wide fact tables + append-only inserts, so
// health snapshots live in one wide table and issue lifecycle events in a
// second, both keyed by time-based IDs.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS health_snapshots (
  snapshot_id      BIGINT PRIMARY KEY,
  recorded_at      TIMESTAMP NOT NULL,

  status           VARCHAR NOT NULL,
  score            INTEGER NOT NULL,
  active_issues    INTEGER NOT NULL,
  alerts           INTEGER NOT NULL,

  cpu_usage_pct    DOUBLE,
  mem_usage_pct    DOUBLE,
  load_avg_1       DOUBLE,
  proc_cpu_pct     DOUBLE,
  proc_rss_bytes   BIGINT,
  proc_heap_bytes  BIGINT,
  uptime_seconds   DOUBLE,

  requests_total   BIGINT,
  requests_error   BIGINT,
  error_rate_pct   DOUBLE,
  avg_response_ms  DOUBLE,

  created_at       TIMESTAMP NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS issue_events (
  event_id     BIGINT PRIMARY KEY,
  recorded_at  TIMESTAMP NOT NULL,

  event        VARCHAR NOT NULL,
  issue_id     VARCHAR NOT NULL,
  category     VARCHAR NOT NULL,
  severity     VARCHAR NOT NULL,
  message      VARCHAR,
  duration_ms  BIGINT,

  created_at   TIMESTAMP NOT NULL DEFAULT now()
);
`

// Issue event kinds.
const (
	EventDetected = "detected"
	EventResolved = "resolved"
)

// =============================================================================
// RECORDS
// =============================================================================

// SnapshotRecord is one archived health observation.
type SnapshotRecord struct {
	SnapshotID int64     `json:"snapshot_id"`
	RecordedAt time.Time `json:"recorded_at"`

	Status       string `json:"status"`
	Score        int    `json:"score"`
	ActiveIssues int    `json:"active_issues"`
	Alerts       int    `json:"alerts"`

	CPUUsagePct   float64 `json:"cpu_usage_pct"`
	MemUsagePct   float64 `json:"mem_usage_pct"`
	LoadAvg1      float64 `json:"load_avg_1"`
	ProcCPUPct    float64 `json:"proc_cpu_pct"`
	ProcRSSBytes  int64   `json:"proc_rss_bytes"`
	ProcHeapBytes int64   `json:"proc_heap_bytes"`
	UptimeSeconds float64 `json:"uptime_seconds"`

	RequestsTotal int64   `json:"requests_total"`
	RequestsError int64   `json:"requests_error"`
	ErrorRatePct  float64 `json:"error_rate_pct"`
	AvgResponseMs float64 `json:"avg_response_ms"`
}

// IssueEvent is one archived issue lifecycle transition.
type IssueEvent struct {
	EventID    int64     `json:"event_id"`
	RecordedAt time.Time `json:"recorded_at"`

	Event      string `json:"event"`
	IssueID    string `json:"issue_id"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	DurationMs int64  `json:"duration_ms"`
}

// =============================================================================
// REPO
// =============================================================================

// Repo wraps the archive tables.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a repo over an open database handle.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the archive tables if they do not exist.
func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, SchemaSQL)
	return err
}

// NewID generates a unique ID (time-based).
func NewID() int64 {
	return time.Now().UnixNano()
}

// InsertSnapshot archives one health observation and returns its ID.
func (r *Repo) InsertSnapshot(ctx context.Context, rec SnapshotRecord) (int64, error) {
	if rec.SnapshotID == 0 {
		rec.SnapshotID = NewID()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO health_snapshots(
		  snapshot_id, recorded_at,
		  status, score, active_issues, alerts,
		  cpu_usage_pct, mem_usage_pct, load_avg_1,
		  proc_cpu_pct, proc_rss_bytes, proc_heap_bytes, uptime_seconds,
		  requests_total, requests_error, error_rate_pct, avg_response_ms
		) VALUES (?,?, ?,?,?,?, ?,?,?, ?,?,?,?, ?,?,?,?)
	`,
		rec.SnapshotID, rec.RecordedAt,
		rec.Status, rec.Score, rec.ActiveIssues, rec.Alerts,
		rec.CPUUsagePct, rec.MemUsagePct, rec.LoadAvg1,
		rec.ProcCPUPct, rec.ProcRSSBytes, rec.ProcHeapBytes, rec.UptimeSeconds,
		rec.RequestsTotal, rec.RequestsError, rec.ErrorRatePct, rec.AvgResponseMs,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot failed: %w", err)
	}
	return rec.SnapshotID, nil
}

// InsertIssueEvent archives one issue transition and returns its ID.
func (r *Repo) InsertIssueEvent(ctx context.Context, ev IssueEvent) (int64, error) {
	if ev.EventID == 0 {
		ev.EventID = NewID()
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issue_events(
		  event_id, recorded_at, event, issue_id, category, severity, message, duration_ms
		) VALUES (?,?,?,?,?,?,?,?)
	`,
		ev.EventID, ev.RecordedAt, ev.Event, ev.IssueID, ev.Category, ev.Severity,
		ev.Message, ev.DurationMs,
	)
	if err != nil {
		return 0, fmt.Errorf("insert issue event failed: %w", err)
	}
	return ev.EventID, nil
}

// QuerySnapshots returns recent snapshots, newest first, optionally
// bounded by a start time.
func (r *Repo) QuerySnapshots(ctx context.Context, since time.Time, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // Safety limit
	}

	query := `
		SELECT
			snapshot_id, recorded_at,
			status, score, active_issues, alerts,
			COALESCE(cpu_usage_pct, 0), COALESCE(mem_usage_pct, 0), COALESCE(load_avg_1, 0),
			COALESCE(proc_cpu_pct, 0), COALESCE(proc_rss_bytes, 0), COALESCE(proc_heap_bytes, 0), COALESCE(uptime_seconds, 0),
			COALESCE(requests_total, 0), COALESCE(requests_error, 0), COALESCE(error_rate_pct, 0), COALESCE(avg_response_ms, 0)
		FROM health_snapshots
		WHERE 1=1
	`
	args := []any{}
	if !since.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, since)
	}
	query += " ORDER BY recorded_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots failed: %w", err)
	}
	defer rows.Close()

	records := []SnapshotRecord{}
	for rows.Next() {
		var rec SnapshotRecord
		err := rows.Scan(
			&rec.SnapshotID, &rec.RecordedAt,
			&rec.Status, &rec.Score, &rec.ActiveIssues, &rec.Alerts,
			&rec.CPUUsagePct, &rec.MemUsagePct, &rec.LoadAvg1,
			&rec.ProcCPUPct, &rec.ProcRSSBytes, &rec.ProcHeapBytes, &rec.UptimeSeconds,
			&rec.RequestsTotal, &rec.RequestsError, &rec.ErrorRatePct, &rec.AvgResponseMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return records, nil
}

// QueryIssueEvents returns recent issue transitions, newest first,
// optionally filtered by category.
func (r *Repo) QueryIssueEvents(ctx context.Context, category string, limit int) ([]IssueEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100 // Safety limit
	}

	query := `
		SELECT event_id, recorded_at, event, issue_id, category, severity,
		       COALESCE(message, ''), COALESCE(duration_ms, 0)
		FROM issue_events
		WHERE 1=1
	`
	args := []any{}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY recorded_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query issue events failed: %w", err)
	}
	defer rows.Close()

	events := []IssueEvent{}
	for rows.Next() {
		var ev IssueEvent
		err := rows.Scan(
			&ev.EventID, &ev.RecordedAt, &ev.Event, &ev.IssueID,
			&ev.Category, &ev.Severity, &ev.Message, &ev.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan issue event failed: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return events, nil
}

// PruneBefore deletes archived rows older than cutoff and reports how
// many were removed.
func (r *Repo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"health_snapshots", "issue_events"} {
		res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE recorded_at < ?", table), cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s failed: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}
