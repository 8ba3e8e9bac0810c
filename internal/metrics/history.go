package metrics

import (
	"sync"
	"time"
)

// History is a bounded rolling window of snapshots. Entries older than the
// retention period are evicted by Maintain; Append never blocks on pruning.
type History struct {
	mu        sync.RWMutex
	entries   []*Snapshot
	retention time.Duration
}

// NewHistory creates a history with the given retention window.
func NewHistory(retention time.Duration) *History {
	return &History{retention: retention}
}

// Append adds a snapshot to the end of the window.
func (h *History) Append(s *Snapshot) {
	h.mu.Lock()
	h.entries = append(h.entries, s)
	h.mu.Unlock()
}

// Latest returns the most recent snapshot, or nil if empty.
func (h *History) Latest() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[len(h.entries)-1]
}

// Recent returns up to n of the most recent snapshots, oldest first.
func (h *History) Recent(n int) []*Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || len(h.entries) == 0 {
		return nil
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]*Snapshot, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Maintain evicts entries older than the retention period relative to now.
func (h *History) Maintain(now time.Time) int {
	cutoff := now.Add(-h.retention)
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := 0
	for idx < len(h.entries) && h.entries[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return 0
	}
	h.entries = append([]*Snapshot(nil), h.entries[idx:]...)
	return idx
}
