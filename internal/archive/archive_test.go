package archive

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"vigil/internal/appstate"
	"vigil/internal/detector"
	"vigil/internal/health"
	"vigil/internal/logging"
	"vigil/internal/metrics"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := NewInMemoryDB()
	if err != nil {
		t.Skipf("duckdb unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewRepo(db.DB())
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return repo
}

func newTestLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.New(logging.DefaultConfig(t.TempDir()), logging.WithClock(clock.NewMock()))
	if err != nil {
		t.Fatalf("logging.New() error: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestInsertAndQuerySnapshots(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		_, err := repo.InsertSnapshot(ctx, SnapshotRecord{
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			Status:     health.StatusHealthy,
			Score:      100 - i,
		})
		if err != nil {
			t.Fatalf("InsertSnapshot() error: %v", err)
		}
	}

	records, err := repo.QuerySnapshots(ctx, time.Time{}, 10)
	if err != nil {
		t.Fatalf("QuerySnapshots() error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// Newest first.
	if records[0].Score != 98 || records[2].Score != 100 {
		t.Errorf("unexpected ordering: %+v", records)
	}

	// Since bound excludes the oldest.
	records, err = repo.QuerySnapshots(ctx, base.Add(30*time.Second), 10)
	if err != nil {
		t.Fatalf("QuerySnapshots(since) error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records since bound, got %d", len(records))
	}

	// Limit applies after ordering.
	records, err = repo.QuerySnapshots(ctx, time.Time{}, 1)
	if err != nil {
		t.Fatalf("QuerySnapshots(limit) error: %v", err)
	}
	if len(records) != 1 || records[0].Score != 98 {
		t.Errorf("expected only the newest record, got %+v", records)
	}
}

func TestQueryIssueEventsCategoryFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	events := []IssueEvent{
		{Event: EventDetected, IssueID: "camera-low-fps", Category: "camera", Severity: "warning"},
		{Event: EventDetected, IssueID: "obs-disconnected", Category: "obs", Severity: "error"},
		{Event: EventResolved, IssueID: "camera-low-fps", Category: "camera", Severity: "warning", DurationMs: 1500},
	}
	for _, ev := range events {
		if _, err := repo.InsertIssueEvent(ctx, ev); err != nil {
			t.Fatalf("InsertIssueEvent() error: %v", err)
		}
	}

	got, err := repo.QueryIssueEvents(ctx, "camera", 10)
	if err != nil {
		t.Fatalf("QueryIssueEvents() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 camera events, got %d", len(got))
	}
	for _, ev := range got {
		if ev.Category != "camera" {
			t.Errorf("filter leaked category %q", ev.Category)
		}
	}

	all, err := repo.QueryIssueEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("QueryIssueEvents(all) error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 events unfiltered, got %d", len(all))
	}
}

func TestPruneBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	repo.InsertSnapshot(ctx, SnapshotRecord{RecordedAt: now.Add(-48 * time.Hour), Status: "healthy"})
	repo.InsertSnapshot(ctx, SnapshotRecord{RecordedAt: now, Status: "healthy"})
	repo.InsertIssueEvent(ctx, IssueEvent{RecordedAt: now.Add(-48 * time.Hour), Event: EventDetected, IssueID: "x", Category: "system", Severity: "info"})

	removed, err := repo.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d; want 2", removed)
	}

	records, _ := repo.QuerySnapshots(ctx, time.Time{}, 10)
	if len(records) != 1 {
		t.Errorf("expected 1 surviving snapshot, got %d", len(records))
	}
}

// fakeSource returns a scripted health report.
type fakeSource struct {
	report *health.Report
	snap   *metrics.Snapshot
	totals metrics.Totals
}

func (f *fakeSource) Current(ctx context.Context) (*health.Report, *metrics.Snapshot, metrics.Totals) {
	return f.report, f.snap, f.totals
}

func TestRecorderRecordOnce(t *testing.T) {
	repo := newTestRepo(t)
	src := &fakeSource{
		report: &health.Report{
			Status:    health.StatusWarning,
			Score:     75,
			Issues:    []string{"cpu elevated"},
			Timestamp: time.Now().UTC(),
		},
		snap: &metrics.Snapshot{CPUPercent: 70, MemPercent: 40, ProcRSS: 1024},
		totals: metrics.Totals{
			ErrorRatePct:  2.5,
			AvgResponseMs: 120,
		},
	}
	rec, err := NewRecorder(repo, src, newTestLogger(t))
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}

	if err := rec.RecordOnce(context.Background()); err != nil {
		t.Fatalf("RecordOnce() error: %v", err)
	}

	records, err := repo.QuerySnapshots(context.Background(), time.Time{}, 10)
	if err != nil {
		t.Fatalf("QuerySnapshots() error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 archived snapshot, got %d", len(records))
	}
	got := records[0]
	if got.Status != health.StatusWarning || got.Score != 75 || got.ActiveIssues != 1 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.CPUUsagePct != 70 || got.ErrorRatePct != 2.5 {
		t.Errorf("metrics not carried through: %+v", got)
	}
}

func TestRecorderRequiresReport(t *testing.T) {
	repo := newTestRepo(t)
	rec, err := NewRecorder(repo, &fakeSource{}, newTestLogger(t))
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}
	if err := rec.RecordOnce(context.Background()); err == nil {
		t.Error("expected error when no report is available")
	}
}

func TestRecorderArchivesIssueTransitions(t *testing.T) {
	repo := newTestRepo(t)
	rec, err := NewRecorder(repo, &fakeSource{report: &health.Report{}}, newTestLogger(t))
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}

	rec.IssuesDetected([]appstate.Issue{
		{ID: "obs-disconnected", Category: "obs", Severity: "error", Message: "OBS connection lost", DetectedAt: time.Now().UTC()},
	})
	rec.IssuesResolved([]detector.ResolvedIssue{
		{
			Issue:    appstate.Issue{ID: "obs-disconnected", Category: "obs", Severity: "error"},
			Duration: 90 * time.Second,
		},
	})

	events, err := repo.QueryIssueEvents(context.Background(), "obs", 10)
	if err != nil {
		t.Fatalf("QueryIssueEvents() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	byKind := map[string]IssueEvent{}
	for _, ev := range events {
		byKind[ev.Event] = ev
	}
	if byKind[EventDetected].Message != "OBS connection lost" {
		t.Errorf("detected event missing message: %+v", byKind[EventDetected])
	}
	if byKind[EventResolved].DurationMs != 90000 {
		t.Errorf("resolved event duration = %d; want 90000", byKind[EventResolved].DurationMs)
	}
}

func TestRecorderLoop(t *testing.T) {
	repo := newTestRepo(t)
	mock := clock.NewMock()
	rec, err := NewRecorder(repo,
		&fakeSource{report: &health.Report{Status: health.StatusHealthy, Score: 100, Timestamp: time.Now().UTC()}},
		newTestLogger(t),
		WithInterval(time.Minute), WithRecorderClock(mock))
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer rec.Stop()
	if err := rec.Start(context.Background()); err == nil {
		t.Error("expected error starting twice")
	}

	// Let the loop goroutine register its ticker before advancing.
	time.Sleep(10 * time.Millisecond)
	mock.Add(time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		records, err := repo.QuerySnapshots(context.Background(), time.Time{}, 10)
		if err == nil && len(records) >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("loop did not archive a snapshot")
}
