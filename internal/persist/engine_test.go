package persist

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"vigil/internal/logging"
)

// ============================================================================
// TEST FIXTURES
// ============================================================================

// fakeOwner is a minimal StateOwner backed by a map.
type fakeOwner struct {
	mu        sync.Mutex
	state     map[string]any
	restored  int
	listeners []func()
}

func newFakeOwner() *fakeOwner {
	return &fakeOwner{state: map[string]any{"counter": 0.0}}
}

func (o *fakeOwner) Snapshot() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	clone := make(map[string]any, len(o.state))
	for k, v := range o.state {
		clone[k] = v
	}
	return clone
}

func (o *fakeOwner) Restore(raw json.RawMessage) error {
	var st map[string]any
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	o.mu.Lock()
	o.state = st
	o.restored++
	o.mu.Unlock()
	return nil
}

func (o *fakeOwner) Subscribe(fn func()) func() {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
	return func() {}
}

func (o *fakeOwner) set(key string, v any) {
	o.mu.Lock()
	o.state[key] = v
	fns := append([]func(){}, o.listeners...)
	o.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type eventRecorder struct {
	mu       sync.Mutex
	saves    int
	restores int
	crashes  int
}

func (r *eventRecorder) StateSaved(SaveInfo) {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
}

func (r *eventRecorder) StateRestored(*Snapshot) {
	r.mu.Lock()
	r.restores++
	r.mu.Unlock()
}

func (r *eventRecorder) CrashRecoveryDetected(*CrashRecord) {
	r.mu.Lock()
	r.crashes++
	r.mu.Unlock()
}

func (r *eventRecorder) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(logging.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(log.Close)
	return log
}

func testEngine(t *testing.T, dir string, mock *clock.Mock) (*Engine, *fakeOwner) {
	t.Helper()
	owner := newFakeOwner()
	cfg := DefaultConfig(dir)
	eng, err := New(cfg, owner, testLogger(t), WithClock(mock))
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng, owner
}

// ============================================================================
// RESTORE PATH
// ============================================================================

func TestRestoreFirstRun(t *testing.T) {
	eng, _ := testEngine(t, t.TempDir(), clock.NewMock())
	_, err := eng.Restore(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty directory, got %v", err)
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	eng, owner := testEngine(t, dir, clock.NewMock())

	owner.set("counter", 42.0)
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	eng2, owner2 := testEngine(t, dir, clock.NewMock())
	snap, err := eng2.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if snap.Version != SchemaVersion {
		t.Errorf("expected version %d, got %d", SchemaVersion, snap.Version)
	}
	if got := owner2.state["counter"]; got != 42.0 {
		t.Errorf("expected counter 42, got %v", got)
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	eng, owner := testEngine(t, dir, clock.NewMock())
	owner.set("counter", 7.0)
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	eng2, owner2 := testEngine(t, dir, clock.NewMock())
	first, err := eng2.Restore(context.Background())
	if err != nil {
		t.Fatalf("first restore failed: %v", err)
	}
	second, err := eng2.Restore(context.Background())
	if err != nil {
		t.Fatalf("second restore failed: %v", err)
	}
	if string(first.State) != string(second.State) {
		t.Error("repeated restore returned a different state payload")
	}
	if owner2.restored != 2 {
		t.Errorf("expected 2 restore applications, got %d", owner2.restored)
	}
	if got := owner2.state["counter"]; got != 7.0 {
		t.Errorf("expected counter 7 after repeated restore, got %v", got)
	}
}

func TestRestoreFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	eng, owner := testEngine(t, dir, mock)

	owner.set("counter", 1.0)
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	mock.Add(time.Second)
	owner.set("counter", 2.0)
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	// Corrupt the canonical file; the backup holds counter=1.
	canonical := filepath.Join(dir, StateFileName)
	if err := os.WriteFile(canonical, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	eng2, owner2 := testEngine(t, dir, clock.NewMock())
	rec := &eventRecorder{}
	eng2.AddObserver(rec)
	if _, err := eng2.Restore(context.Background()); err != nil {
		t.Fatalf("restore should fall back to backup, got %v", err)
	}
	if got := owner2.state["counter"]; got != 1.0 {
		t.Errorf("expected backup state counter 1, got %v", got)
	}
	if rec.restores != 1 {
		t.Errorf("expected 1 StateRestored event, got %d", rec.restores)
	}
}

func TestRestoreFailsWhenEverythingCorrupt(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	eng, _ := testEngine(t, dir, mock)

	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	mock.Add(time.Second)
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".json") {
			if err := os.WriteFile(filepath.Join(dir, entry.Name()), []byte("garbage"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}

	eng2, _ := testEngine(t, dir, clock.NewMock())
	_, err = eng2.Restore(context.Background())
	if !errors.Is(err, ErrRestoreFailed) {
		t.Errorf("expected ErrRestoreFailed, got %v", err)
	}
}

// ============================================================================
// BACKUP ROTATION
// ============================================================================

func TestBackupRotationBound(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	owner := newFakeOwner()
	cfg := DefaultConfig(dir).WithMaxBackups(3)
	eng, err := New(cfg, owner, testLogger(t), WithClock(mock))
	if err != nil {
		t.Fatal(err)
	}

	// MaxBackups+5 saves after the first; every save past the first
	// produces a backup, so rotation must cap the count at 3.
	for i := 0; i < cfg.MaxBackups+6; i++ {
		if err := eng.Save(context.Background()); err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
		mock.Add(time.Second)
	}

	backups := eng.listBackups()
	if len(backups) != cfg.MaxBackups {
		t.Fatalf("expected %d backups, got %d: %v", cfg.MaxBackups, len(backups), backups)
	}
	// Newest-first ordering: the first entry must carry the latest stamp.
	for i := 1; i < len(backups); i++ {
		if filepath.Base(backups[i-1]) < filepath.Base(backups[i]) {
			t.Errorf("backups not newest-first: %s before %s", backups[i-1], backups[i])
		}
	}
}

func TestBackupsDistinctWithinOneSecond(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	eng, _ := testEngine(t, dir, mock)

	// Three saves inside one wall-clock second. The first only writes the
	// canonical file; the next two must each leave their own backup rather
	// than overwriting a same-second sibling.
	if err := eng.Save(context.Background()); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		mock.Add(300 * time.Millisecond)
		if err := eng.Save(context.Background()); err != nil {
			t.Fatalf("save %d failed: %v", i+2, err)
		}
	}

	backups := eng.listBackups()
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups from sub-second saves, got %d: %v", len(backups), backups)
	}
	if filepath.Base(backups[0]) == filepath.Base(backups[1]) {
		t.Errorf("sub-second backups share a filename: %s", backups[0])
	}
}

// ============================================================================
// DEBOUNCE AND AUTOSAVE
// ============================================================================

func TestDebounceCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	eng, owner := testEngine(t, dir, mock)
	rec := &eventRecorder{}
	eng.AddObserver(rec)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer eng.Stop()

	for i := 0; i < 10; i++ {
		owner.set("counter", float64(i))
		mock.Add(100 * time.Millisecond)
	}
	if rec.saveCount() != 0 {
		t.Fatalf("save fired before the debounce window elapsed: %d", rec.saveCount())
	}

	// One quiet second after the last change releases exactly one save.
	mock.Add(time.Second)
	waitFor(t, func() bool { return rec.saveCount() == 1 })

	mock.Add(2 * time.Second)
	if got := rec.saveCount(); got != 1 {
		t.Errorf("expected 1 coalesced save, got %d", got)
	}
}

func TestAutosaveFiresOnInterval(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	eng, _ := testEngine(t, dir, mock)
	rec := &eventRecorder{}
	eng.AddObserver(rec)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer eng.Stop()

	// Let the loop goroutine register its ticker before advancing.
	time.Sleep(10 * time.Millisecond)
	mock.Add(30 * time.Second)
	waitFor(t, func() bool { return rec.saveCount() >= 1 })
	mock.Add(30 * time.Second)
	waitFor(t, func() bool { return rec.saveCount() >= 2 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// ============================================================================
// CRASH RECORDS
// ============================================================================

func TestCrashRecordConsumedOnce(t *testing.T) {
	dir := t.TempDir()
	eng, owner := testEngine(t, dir, clock.NewMock())
	owner.set("counter", 9.0)

	eng.CaptureCrash("simulated panic")

	eng2, _ := testEngine(t, dir, clock.NewMock())
	rec := &eventRecorder{}
	eng2.AddObserver(rec)

	crash, err := eng2.ConsumeCrashRecord()
	if err != nil {
		t.Fatalf("expected crash record, got %v", err)
	}
	if crash.Error.Message != "simulated panic" {
		t.Errorf("unexpected crash message %q", crash.Error.Message)
	}
	if len(crash.LastState) == 0 {
		t.Error("crash record should carry the last state")
	}
	if rec.crashes != 1 {
		t.Errorf("expected 1 CrashRecoveryDetected event, got %d", rec.crashes)
	}

	if _, err := eng2.ConsumeCrashRecord(); !errors.Is(err, ErrNotFound) {
		t.Errorf("second consumption should report ErrNotFound, got %v", err)
	}
}

func TestCaptureCrashWritesEmergencySnapshot(t *testing.T) {
	dir := t.TempDir()
	eng, _ := testEngine(t, dir, clock.NewMock())
	eng.CaptureCrash(errors.New("boom"))

	raw, err := os.ReadFile(filepath.Join(dir, EmergencyFileName))
	if err != nil {
		t.Fatalf("emergency snapshot missing: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("emergency snapshot unparseable: %v", err)
	}
	if err := snap.validate(); err != nil {
		t.Errorf("emergency snapshot invalid: %v", err)
	}
}

func TestShutdownSavesAndClearsCrashRecord(t *testing.T) {
	dir := t.TempDir()
	eng, owner := testEngine(t, dir, clock.NewMock())
	owner.set("counter", 5.0)
	eng.CaptureCrash("stale record from this run")

	eng.Shutdown(context.Background())

	if _, err := os.Stat(filepath.Join(dir, CrashFileName)); !os.IsNotExist(err) {
		t.Error("clean shutdown should remove the crash record")
	}
	if _, err := os.Stat(filepath.Join(dir, StateFileName)); err != nil {
		t.Errorf("shutdown should have written a final state file: %v", err)
	}

	// Idempotent: a second call must not recreate anything or panic.
	eng.Shutdown(context.Background())
}

// ============================================================================
// CONFIG STORE
// ============================================================================

func TestConfigStorePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenConfigStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set("theme", "dark"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set("retries", 3); err != nil {
		t.Fatal(err)
	}
	if err := store.Flush(); err != nil {
		t.Fatal(err)
	}

	store2, err := OpenConfigStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	var theme string
	if err := store2.Get("theme", &theme); err != nil || theme != "dark" {
		t.Errorf("expected theme dark, got %q (err %v)", theme, err)
	}
	var retries int
	if err := store2.Get("retries", &retries); err != nil || retries != 3 {
		t.Errorf("expected retries 3, got %d (err %v)", retries, err)
	}
	if err := store2.Get("missing", &theme); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing key, got %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid defaults", DefaultConfig(t.TempDir()), false},
		{"empty dir", DefaultConfig(""), true},
		{"zero debounce", DefaultConfig("x").WithDebounceWindow(0), true},
		{"zero autosave", DefaultConfig("x").WithAutosaveInterval(0), true},
		{"zero backups", DefaultConfig("x").WithMaxBackups(0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
