package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// Restore loads persisted state back into the owner. It tries the
// canonical file first, then each backup newest-first, and returns the
// snapshot that was applied. ErrNotFound means nothing was ever saved
// (a normal first run); ErrRestoreFailed means files exist but none
// validated, and the caller must not treat state as empty.
func (e *Engine) Restore(ctx context.Context) (*Snapshot, error) {
	canonical := filepath.Join(e.cfg.Dir, StateFileName)

	snap, err := parseSnapshot(canonical)
	if err == nil {
		return e.applySnapshot(snap, "canonical")
	}
	if errors.Is(err, ErrNotFound) && len(e.listBackups()) == 0 {
		return nil, ErrNotFound
	}
	e.log.Warn("canonical state file unusable, trying backups", "error", err.Error())

	for _, path := range e.listBackups() {
		snap, berr := parseSnapshot(path)
		if berr != nil {
			e.log.Warn("skipping invalid backup", "path", path, "error", berr.Error())
			continue
		}
		return e.applySnapshot(snap, filepath.Base(path))
	}

	e.log.Error("persistence", "state restore exhausted canonical file and all backups")
	return nil, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
}

func (e *Engine) applySnapshot(snap *Snapshot, source string) (*Snapshot, error) {
	if err := e.owner.Restore(snap.State); err != nil {
		return nil, fmt.Errorf("apply restored state: %w", err)
	}
	e.log.Info("state restored", "source", source, "savedAt", snap.Timestamp)
	e.eachObserver(func(o Observer) { o.StateRestored(snap) })
	return snap, nil
}
