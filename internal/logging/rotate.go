package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// bufferedFile accumulates encoded log lines in memory and appends them to
// its file in one batch per flush. After a successful flush the file size is
// checked against the rotation threshold; rotation shifts numbered backups
// up by one index and discards the oldest beyond the retention count.
//
// Appends, flushes and rotation for one file are serialized by mu.
type bufferedFile struct {
	mu           sync.Mutex
	path         string
	buf          bytes.Buffer
	maxSize      int64
	maxRotations int

	// recent holds the tail of entries written through this file, for
	// diagnostics reports. Bounded by recentCap.
	recent    []string
	recentCap int
}

const defaultRecentCap = 200

func newBufferedFile(path string, maxSize int64, maxRotations int) *bufferedFile {
	return &bufferedFile{
		path:         path,
		maxSize:      maxSize,
		maxRotations: maxRotations,
		recentCap:    defaultRecentCap,
	}
}

// Write buffers one encoded entry. It satisfies io.Writer so slog handlers
// can target the file directly; each handler call delivers one full line.
func (f *bufferedFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf.Write(p)
	line := strings.TrimRight(string(p), "\n")
	f.recent = append(f.recent, line)
	if len(f.recent) > f.recentCap {
		f.recent = f.recent[len(f.recent)-f.recentCap:]
	}
	return len(p), nil
}

// Flush appends all buffered entries to the file in one write, then checks
// the rotation threshold. On write failure the buffer is kept so the entries
// are retried on the next flush.
func (f *bufferedFile) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.buf.Len() == 0 {
		return nil
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", f.path, err)
	}
	_, werr := file.Write(f.buf.Bytes())
	cerr := file.Close()
	if werr != nil {
		return fmt.Errorf("append log file %s: %w", f.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("close log file %s: %w", f.path, cerr)
	}
	f.buf.Reset()

	info, err := os.Stat(f.path)
	if err != nil || info.Size() < f.maxSize {
		return nil
	}
	return f.rotate()
}

// Tail returns up to n of the most recent entries written through this file.
func (f *bufferedFile) Tail(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || len(f.recent) == 0 {
		return nil
	}
	if n > len(f.recent) {
		n = len(f.recent)
	}
	out := make([]string, n)
	copy(out, f.recent[len(f.recent)-n:])
	return out
}

// rotate shifts combined.log -> combined.1.log -> combined.2.log ... and
// discards the backup beyond maxRotations. Caller holds mu.
func (f *bufferedFile) rotate() error {
	ext := filepath.Ext(f.path)
	stem := strings.TrimSuffix(f.path, ext)

	numbered := func(i int) string {
		return stem + "." + strconv.Itoa(i) + ext
	}

	if f.maxRotations == 0 {
		return os.Remove(f.path)
	}

	// Oldest backup falls off the end.
	_ = os.Remove(numbered(f.maxRotations))
	for i := f.maxRotations - 1; i >= 1; i-- {
		if _, err := os.Stat(numbered(i)); err == nil {
			if err := os.Rename(numbered(i), numbered(i+1)); err != nil {
				return fmt.Errorf("rotate %s: %w", numbered(i), err)
			}
		}
	}
	if err := os.Rename(f.path, numbered(1)); err != nil {
		return fmt.Errorf("rotate %s: %w", f.path, err)
	}
	return nil
}
