package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func newTestLogger(t *testing.T, cfg Config) *Logger {
	t.Helper()
	l, err := New(cfg, WithClock(clock.NewMock()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestLeveledEntriesReachCombinedTail(t *testing.T) {
	l := newTestLogger(t, DefaultConfig(t.TempDir()).WithMinLevel(LevelDebug))

	l.Debug("debug entry", "n", 1)
	l.Info("info entry", "n", 2)
	l.Warn("warn entry", "n", 3)

	tail := l.Tail(CategoryCombined, 10)
	if len(tail) != 3 {
		t.Fatalf("expected 3 combined entries, got %d", len(tail))
	}
	for _, line := range tail {
		if !json.Valid([]byte(line)) {
			t.Errorf("tail entry is not valid JSON: %s", line)
		}
	}
	if !strings.Contains(tail[2], "warn entry") {
		t.Errorf("expected newest entry last, got %s", tail[2])
	}
}

func TestMinLevelFiltersCombined(t *testing.T) {
	l := newTestLogger(t, DefaultConfig(t.TempDir()).WithMinLevel(LevelWarn))

	l.Info("filtered out")
	l.Warn("kept")

	tail := l.Tail(CategoryCombined, 10)
	if len(tail) != 1 {
		t.Fatalf("expected 1 entry at MinLevel=warn, got %d", len(tail))
	}
	if !strings.Contains(tail[0], "kept") {
		t.Errorf("unexpected entry: %s", tail[0])
	}
}

func TestErrorWritesBothSinksAndTallies(t *testing.T) {
	l := newTestLogger(t, DefaultConfig(t.TempDir()))

	l.Error("persistence", "save failed", "path", "/tmp/x")
	l.Error("persistence", "save failed again")
	l.Error("rule_evaluation", "rule panicked")

	counts := l.ErrorCounts()
	if counts["persistence"] != 2 || counts["rule_evaluation"] != 1 {
		t.Errorf("unexpected error counts: %v", counts)
	}
	if len(l.Tail(CategoryError, 10)) != 3 {
		t.Errorf("expected 3 entries in error log, got %d", len(l.Tail(CategoryError, 10)))
	}
	if len(l.Tail(CategoryCombined, 10)) != 3 {
		t.Errorf("expected errors mirrored to combined log")
	}
}

func TestCategorySinks(t *testing.T) {
	l := newTestLogger(t, DefaultConfig(t.TempDir()))

	l.Action("reconnect-obs", "issue", "obs-disconnected", "success", true)
	l.Perf("save_duration_ms", 12.5)
	l.Audit("state_restore_failed", "error", "corrupt")

	tests := []struct {
		category string
		want     string
	}{
		{CategoryActions, "reconnect-obs"},
		{CategoryPerformance, "save_duration_ms"},
		{CategorySecurity, "state_restore_failed"},
	}
	for _, tt := range tests {
		tail := l.Tail(tt.category, 5)
		if len(tail) != 1 {
			t.Errorf("category %s: expected 1 entry, got %d", tt.category, len(tail))
			continue
		}
		if !strings.Contains(tail[0], tt.want) {
			t.Errorf("category %s: entry %s missing %q", tt.category, tail[0], tt.want)
		}
	}
}

func TestFlushWritesFiles(t *testing.T) {
	dir := t.TempDir()
	l := newTestLogger(t, DefaultConfig(dir))

	l.Info("hello", "k", "v")
	l.Flush()

	raw, err := os.ReadFile(filepath.Join(dir, "combined.log"))
	if err != nil {
		t.Fatalf("read combined.log: %v", err)
	}
	if !strings.Contains(string(raw), "hello") {
		t.Errorf("combined.log missing entry: %s", raw)
	}
}

func TestFlushLoopDrivenByClock(t *testing.T) {
	dir := t.TempDir()
	mock := clock.NewMock()
	l, err := New(DefaultConfig(dir).WithFlushInterval(time.Second), WithClock(mock))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer l.Close()

	l.Info("buffered")
	if _, err := os.Stat(filepath.Join(dir, "combined.log")); err == nil {
		t.Fatal("entry flushed before the interval elapsed")
	}

	// Let the loop goroutine register its ticker before advancing.
	time.Sleep(10 * time.Millisecond)
	mock.Add(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(dir, "combined.log")); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("flush loop did not write the file")
}

func TestRotationKeepsNumberedBackups(t *testing.T) {
	dir := t.TempDir()
	bf := newBufferedFile(filepath.Join(dir, "combined.log"), 64, 2)

	line := strings.Repeat("x", 60) + "\n"
	for i := 0; i < 4; i++ {
		if _, err := bf.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := bf.Flush(); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}

	for _, name := range []string{"combined.1.log", "combined.2.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected backup %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "combined.3.log")); err == nil {
		t.Error("backup beyond MaxRotations must be discarded")
	}
}

func TestTailBounded(t *testing.T) {
	bf := newBufferedFile(filepath.Join(t.TempDir(), "combined.log"), 1<<20, 1)
	bf.recentCap = 3
	for i := 0; i < 5; i++ {
		bf.Write([]byte("entry\n"))
	}
	if got := len(bf.Tail(10)); got != 3 {
		t.Errorf("expected tail capped at 3, got %d", got)
	}
	if bf.Tail(0) != nil {
		t.Error("Tail(0) must return nil")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", DefaultConfig(t.TempDir()), false},
		{"empty dir", Config{FlushInterval: time.Second, MaxFileSize: 1, MaxRotations: 1}, true},
		{"zero flush interval", DefaultConfig("x").WithFlushInterval(0), true},
		{"zero max size", DefaultConfig("x").WithMaxFileSize(0), true},
		{"negative rotations", DefaultConfig("x").WithMaxRotations(-1), true},
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
