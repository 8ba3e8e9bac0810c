package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

// CrashRecord is written when the process is going down abnormally and
// read exactly once on the next startup.
type CrashRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	Error       CrashError      `json:"error"`
	ProcessInfo ProcessInfo     `json:"processInfo"`
	LastState   json.RawMessage `json:"lastState,omitempty"`
}

// CrashError captures what went wrong.
type CrashError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

// ProcessInfo captures the dying process for post-mortem correlation.
type ProcessInfo struct {
	PID       int     `json:"pid"`
	UptimeSec float64 `json:"uptimeSec"`
	Platform  string  `json:"platform"`
	GoVersion string  `json:"goVersion"`
}

// CaptureCrash writes the crash record and an emergency state snapshot.
// Called from a recover() or fatal-signal path, so every step is
// best-effort: a failure to persist must not mask the original crash.
func (e *Engine) CaptureCrash(cause any) {
	now := e.clk.Now()
	rec := CrashRecord{
		Timestamp: now,
		Error: CrashError{
			Name:    fmt.Sprintf("%T", cause),
			Message: fmt.Sprint(cause),
			Stack:   string(debug.Stack()),
		},
		ProcessInfo: ProcessInfo{
			PID:       os.Getpid(),
			UptimeSec: time.Since(e.started).Seconds(),
			Platform:  newMetadata(now).Platform,
			GoVersion: newMetadata(now).GoVersion,
		},
	}
	if raw, err := json.Marshal(e.owner.Snapshot()); err == nil {
		rec.LastState = raw
	}

	if raw, err := json.MarshalIndent(rec, "", "  "); err == nil {
		path := filepath.Join(e.cfg.Dir, CrashFileName)
		if werr := os.WriteFile(path, raw, 0o644); werr != nil {
			e.log.Error("persistence", "failed to write crash record", "error", werr.Error())
		}
	}

	// Emergency snapshot: a full save outside the normal debounce path,
	// so the post-crash restore has something recent even if the last
	// debounced save never fired.
	if snap, err := e.buildSnapshot(now); err == nil {
		if raw, merr := json.MarshalIndent(snap, "", "  "); merr == nil {
			path := filepath.Join(e.cfg.Dir, EmergencyFileName)
			_ = os.WriteFile(path, raw, 0o644)
		}
	}

	e.log.Error("crash", "crash captured", "cause", rec.Error.Message)
	e.log.Flush()
}

// ConsumeCrashRecord returns the crash record from the previous run, if
// any, and deletes it so it is reported exactly once. ErrNotFound means
// the previous exit was clean.
func (e *Engine) ConsumeCrashRecord() (*CrashRecord, error) {
	path := filepath.Join(e.cfg.Dir, CrashFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	// Delete before parsing: even a corrupt record must not be seen twice.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.log.Warn("failed to remove crash record", "error", err.Error())
	}

	var rec CrashRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	e.log.Warn("previous session ended in a crash", "crashedAt", rec.Timestamp, "cause", rec.Error.Message)
	e.eachObserver(func(o Observer) { o.CrashRecoveryDetected(&rec) })
	return &rec, nil
}
