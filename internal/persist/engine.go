// Package persist checkpoints the externally-owned application state to
// disk with rotating backups, restores it on startup with a backup
// fallback chain, and records crash artifacts so a restart can tell a
// clean exit from a crash.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"vigil/internal/logging"
)

// ============================================================================
// COLLABORATOR INTERFACES
// ============================================================================

// StateOwner is the component that owns the application state. The engine
// reads snapshots from it, restores into it, and listens for changes.
type StateOwner interface {
	// Snapshot returns the current state as a JSON-serializable value.
	Snapshot() any
	// Restore replaces the state from a persisted payload.
	Restore(raw json.RawMessage) error
	// Subscribe registers a change callback and returns a cancel function.
	Subscribe(fn func()) (cancel func())
}

// SaveInfo describes one completed save.
type SaveInfo struct {
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Observer receives persistence lifecycle events. Implementations are
// registered before Start and must not block.
type Observer interface {
	StateSaved(info SaveInfo)
	StateRestored(snap *Snapshot)
	CrashRecoveryDetected(rec *CrashRecord)
}

// ============================================================================
// ENGINE
// ============================================================================

// Engine is the state persistence engine.
type Engine struct {
	cfg     Config
	owner   StateOwner
	log     *logging.Logger
	clk     clock.Clock
	started time.Time

	// saveMu serializes the backup/prune/write sequence. A save attempted
	// while another is in flight is coalesced into the next debounce cycle.
	saveMu sync.Mutex

	debounceMu sync.Mutex
	debounce   *clock.Timer

	obsMu     sync.Mutex
	observers []Observer

	loopMu      sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()

	shutdownOnce sync.Once
}

// Option configures the Engine.
type Option func(*Engine)

// WithClock injects a clock, used by tests to drive debounce and autosave.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clk = c }
}

// New creates a persistence engine rooted at cfg.Dir.
func New(cfg Config, owner StateOwner, log *logging.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if owner == nil || log == nil {
		return nil, fmt.Errorf("state owner and logger are required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	e := &Engine{
		cfg:     cfg,
		owner:   owner,
		log:     log,
		clk:     clock.New(),
		started: time.Now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// AddObserver registers a lifecycle observer.
func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) eachObserver(fn func(Observer)) {
	e.obsMu.Lock()
	obs := append([]Observer(nil), e.observers...)
	e.obsMu.Unlock()
	for _, o := range obs {
		fn(o)
	}
}

// ============================================================================
// WRITE PATH
// ============================================================================

// Save checkpoints the current state. If another save is in flight the
// request is coalesced into the next debounce cycle instead of queueing a
// second interleaved write.
func (e *Engine) Save(ctx context.Context) error {
	if !e.saveMu.TryLock() {
		e.scheduleDebounced()
		return nil
	}
	defer e.saveMu.Unlock()
	return e.doSave(ctx)
}

// saveBlocking waits for any in-flight save, then saves. Used by shutdown
// and crash paths where coalescing would lose the final state.
func (e *Engine) saveBlocking(ctx context.Context) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	return e.doSave(ctx)
}

func (e *Engine) doSave(ctx context.Context) error {
	start := time.Now()
	now := e.clk.Now()

	snap, err := e.buildSnapshot(now)
	if err != nil {
		e.log.Error("persistence", "failed to build state snapshot", "error", err.Error())
		return err
	}

	canonical := filepath.Join(e.cfg.Dir, StateFileName)

	// Backup-then-overwrite: the previous canonical file survives as a
	// timestamped backup before the new snapshot replaces it.
	if err := e.backupCanonical(canonical, now); err != nil {
		e.log.Error("persistence", "failed to back up state file", "error", err.Error())
		return err
	}
	e.pruneBackups()

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(canonical, raw, 0o644); err != nil {
		e.log.Error("persistence", "failed to write state file", "error", err.Error())
		return fmt.Errorf("write %s: %w", canonical, err)
	}

	info := SaveInfo{Duration: time.Since(start), Timestamp: now}
	e.log.Debug("state saved", "duration", info.Duration.String())
	e.log.Perf("state_save_ms", float64(info.Duration.Milliseconds()))
	e.eachObserver(func(o Observer) { o.StateSaved(info) })
	return nil
}

func (e *Engine) buildSnapshot(now time.Time) (*Snapshot, error) {
	stateRaw, err := json.Marshal(e.owner.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return &Snapshot{
		Timestamp: now,
		Version:   SchemaVersion,
		ProcessID: os.Getpid(),
		UptimeSec: time.Since(e.started).Seconds(),
		State:     stateRaw,
		Metadata:  newMetadata(now),
	}, nil
}

// backupCanonical copies the existing canonical file to a timestamped
// backup. A missing canonical file is the first save, not an error.
func (e *Engine) backupCanonical(canonical string, now time.Time) error {
	raw, err := os.ReadFile(canonical)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", canonical, err)
	}
	stamp := now.UTC().Format(backupStampLayout)
	backup := filepath.Join(e.cfg.Dir, backupPrefix+stamp+backupSuffix)
	if err := os.WriteFile(backup, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", backup, err)
	}
	return nil
}

// pruneBackups deletes the oldest backups beyond the retention count.
// Best-effort; failures are logged and retried on the next save.
func (e *Engine) pruneBackups() {
	files := e.listBackups()
	for _, path := range files[min(len(files), e.cfg.MaxBackups):] {
		if err := os.Remove(path); err != nil {
			e.log.Warn("failed to prune backup", "path", path, "error", err.Error())
		}
	}
}

// listBackups returns backup paths newest-first, by mtime with the
// timestamped name as tiebreaker.
func (e *Engine) listBackups() []string {
	entries, err := os.ReadDir(e.cfg.Dir)
	if err != nil {
		return nil
	}
	type backup struct {
		path  string
		mtime time.Time
		name  string
	}
	var backups []backup
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) <= len(backupPrefix)+len(backupSuffix) {
			continue
		}
		if name[:len(backupPrefix)] != backupPrefix || name[len(name)-len(backupSuffix):] != backupSuffix {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{
			path:  filepath.Join(e.cfg.Dir, name),
			mtime: info.ModTime(),
			name:  name,
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].mtime.Equal(backups[j].mtime) {
			return backups[i].mtime.After(backups[j].mtime)
		}
		return backups[i].name > backups[j].name
	})
	out := make([]string, len(backups))
	for i, b := range backups {
		out[i] = b.path
	}
	return out
}

// ============================================================================
// TRIGGERS
// ============================================================================

// NotifyChange restarts the debounce window. Bursts of change
// notifications collapse into a single save once the window elapses.
func (e *Engine) NotifyChange() {
	e.scheduleDebounced()
}

func (e *Engine) scheduleDebounced() {
	e.debounceMu.Lock()
	defer e.debounceMu.Unlock()
	if e.debounce != nil {
		e.debounce.Reset(e.cfg.DebounceWindow)
		return
	}
	e.debounce = e.clk.AfterFunc(e.cfg.DebounceWindow, func() {
		e.debounceMu.Lock()
		e.debounce = nil
		e.debounceMu.Unlock()
		if err := e.Save(context.Background()); err != nil {
			e.log.Error("persistence", "debounced save failed", "error", err.Error())
		}
	})
}

func (e *Engine) stopDebounce() {
	e.debounceMu.Lock()
	defer e.debounceMu.Unlock()
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// Start subscribes to state changes and begins the autosave loop.
func (e *Engine) Start(ctx context.Context) error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.cancel != nil {
		return fmt.Errorf("persistence engine already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.unsubscribe = e.owner.Subscribe(e.NotifyChange)
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		ticker := e.clk.Ticker(e.cfg.AutosaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.Save(ctx); err != nil {
					e.log.Error("persistence", "autosave failed", "error", err.Error())
				}
			}
		}
	}()
	return nil
}

// Stop cancels timers and the change subscription without saving.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	cancel := e.cancel
	e.cancel = nil
	unsub := e.unsubscribe
	e.unsubscribe = nil
	e.loopMu.Unlock()

	if unsub != nil {
		unsub()
	}
	e.stopDebounce()
	if cancel != nil {
		cancel()
		e.wg.Wait()
	}
}

// ============================================================================
// SHUTDOWN
// ============================================================================

// Shutdown performs the graceful-exit sequence: stop timers, one final
// save, drop any stale crash record. Idempotent; a second call while the
// first is in progress does not re-enter the save path.
func (e *Engine) Shutdown(ctx context.Context) {
	e.shutdownOnce.Do(func() {
		e.Stop()
		if err := e.saveBlocking(ctx); err != nil {
			e.log.Error("persistence", "final save failed", "error", err.Error())
		}
		// This was a clean exit; a leftover crash record would lie.
		_ = os.Remove(filepath.Join(e.cfg.Dir, CrashFileName))
		e.log.Info("persistence engine shut down")
	})
}
