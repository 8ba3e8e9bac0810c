package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"vigil/internal/appstate"
	"vigil/internal/detector"
	"vigil/internal/health"
	"vigil/internal/logging"
	"vigil/internal/metrics"
)

const defaultArchiveInterval = 60 * time.Second

// HealthSource produces the current health report for archiving.
type HealthSource interface {
	Current(ctx context.Context) (*health.Report, *metrics.Snapshot, metrics.Totals)
}

// Recorder periodically archives health observations and, as a detector
// observer, archives issue lifecycle transitions as they happen.
type Recorder struct {
	repo     *Repo
	source   HealthSource
	log      *logging.Logger
	clk      clock.Clock
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithInterval overrides the archive interval.
func WithInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRecorderClock injects a clock for tests.
func WithRecorderClock(c clock.Clock) RecorderOption {
	return func(r *Recorder) { r.clk = c }
}

// NewRecorder creates a recorder writing into repo.
func NewRecorder(repo *Repo, source HealthSource, log *logging.Logger, opts ...RecorderOption) (*Recorder, error) {
	if repo == nil || source == nil || log == nil {
		return nil, errors.New("repo, health source, and logger are required")
	}
	r := &Recorder{
		repo:     repo,
		source:   source,
		log:      log,
		clk:      clock.New(),
		interval: defaultArchiveInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Start begins the periodic archiving loop.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("recorder already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.loop(ctx)
	return nil
}

// Stop gracefully stops the recorder.
func (r *Recorder) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// RecordOnce archives a single health observation immediately.
func (r *Recorder) RecordOnce(ctx context.Context) error {
	report, snap, totals := r.source.Current(ctx)
	if report == nil {
		return errors.New("no health report available")
	}
	rec := SnapshotRecord{
		RecordedAt:    report.Timestamp,
		Status:        report.Status,
		Score:         report.Score,
		ActiveIssues:  len(report.Issues),
		Alerts:        len(report.Alerts),
		RequestsTotal: int64(totals.Requests.Total),
		RequestsError: int64(totals.Requests.Error),
		ErrorRatePct:  totals.ErrorRatePct,
		AvgResponseMs: totals.AvgResponseMs,
	}
	if snap != nil {
		rec.CPUUsagePct = snap.CPUPercent
		rec.MemUsagePct = snap.MemPercent
		rec.LoadAvg1 = snap.LoadAvg1
		rec.ProcCPUPct = snap.ProcCPUPercent
		rec.ProcRSSBytes = int64(snap.ProcRSS)
		rec.ProcHeapBytes = int64(snap.ProcHeapAlloc)
		rec.UptimeSeconds = snap.ProcUptimeSec
	}
	if _, err := r.repo.InsertSnapshot(ctx, rec); err != nil {
		return err
	}
	return nil
}

func (r *Recorder) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := r.clk.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RecordOnce(ctx); err != nil {
				r.log.Warn("failed to archive health snapshot", "error", err.Error())
			}
		}
	}
}

// =============================================================================
// DETECTOR OBSERVER
// =============================================================================

// IssuesDetected archives newly detected issues.
func (r *Recorder) IssuesDetected(issues []appstate.Issue) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, iss := range issues {
		ev := IssueEvent{
			RecordedAt: iss.DetectedAt,
			Event:      EventDetected,
			IssueID:    iss.ID,
			Category:   iss.Category,
			Severity:   iss.Severity,
			Message:    iss.Message,
		}
		if _, err := r.repo.InsertIssueEvent(ctx, ev); err != nil {
			r.log.Warn("failed to archive issue event", "issue", iss.ID, "error", err.Error())
		}
	}
}

// IssuesResolved archives resolved issues with their lifetimes.
func (r *Recorder) IssuesResolved(issues []detector.ResolvedIssue) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, iss := range issues {
		ev := IssueEvent{
			Event:      EventResolved,
			IssueID:    iss.ID,
			Category:   iss.Category,
			Severity:   iss.Severity,
			Message:    iss.Message,
			DurationMs: iss.Duration.Milliseconds(),
		}
		if _, err := r.repo.InsertIssueEvent(ctx, ev); err != nil {
			r.log.Warn("failed to archive issue event", "issue", iss.ID, "error", err.Error())
		}
	}
}
