// Package logging provides the structured, leveled log facade for vigil
// components.
//
// It is built on the standard library slog package with JSON output, one
// file per category (combined, error, actions, performance, security),
// buffered batched writes on a fixed flush interval, and size-based
// rotation with numbered backups. Components receive a *Logger via
// constructor injection; there is no ambient global.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/benbjohnson/clock"
)

// Level is the facade's log level. Trace maps below slog's Debug.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// slog has no trace level; -8 sits one step below slog.LevelDebug.
const slogLevelTrace = slog.Level(-8)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelTrace:
		return slogLevelTrace
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// Log file categories.
const (
	CategoryCombined    = "combined"
	CategoryError       = "error"
	CategoryActions     = "actions"
	CategoryPerformance = "performance"
	CategorySecurity    = "security"
)

// Categories lists all log categories in report order.
var Categories = []string{
	CategoryCombined,
	CategoryError,
	CategoryActions,
	CategoryPerformance,
	CategorySecurity,
}

// Logger is the leveled, multi-category log sink. Safe for concurrent use.
type Logger struct {
	cfg   Config
	clk   clock.Clock
	files map[string]*bufferedFile
	sinks map[string]*slog.Logger

	tallyMu     sync.Mutex
	errorCounts map[string]int

	loopMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Logger.
type Option func(*Logger)

// WithClock injects a clock, used by tests to drive the flush loop.
func WithClock(c clock.Clock) Option {
	return func(l *Logger) { l.clk = c }
}

// New creates a Logger writing under cfg.Dir and starts its flush loop.
// Call Close to stop the loop and flush remaining entries.
func New(cfg Config, opts ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &Logger{
		cfg:         cfg,
		clk:         clock.New(),
		files:       map[string]*bufferedFile{},
		sinks:       map[string]*slog.Logger{},
		errorCounts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	for _, cat := range Categories {
		bf := newBufferedFile(filepath.Join(cfg.Dir, cat+".log"), cfg.MaxFileSize, cfg.MaxRotations)
		l.files[cat] = bf

		// The combined sink honors the configured minimum level; category
		// sinks always record what is sent to them.
		minLevel := slogLevelTrace
		if cat == CategoryCombined {
			minLevel = cfg.MinLevel.slogLevel()
		}
		l.sinks[cat] = slog.New(slog.NewJSONHandler(bf, &slog.HandlerOptions{Level: minLevel}))
	}

	l.startFlushLoop()
	return l, nil
}

// ============================================================================
// LEVELED API (combined log)
// ============================================================================

// Trace logs at trace level.
func (l *Logger) Trace(msg string, args ...any) {
	l.sinks[CategoryCombined].Log(context.Background(), slogLevelTrace, msg, args...)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.sinks[CategoryCombined].Debug(msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.sinks[CategoryCombined].Info(msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.sinks[CategoryCombined].Warn(msg, args...)
}

// Error logs to the combined and error logs and bumps the tally for kind.
func (l *Logger) Error(kind, msg string, args ...any) {
	l.tallyMu.Lock()
	l.errorCounts[kind]++
	l.tallyMu.Unlock()

	args = append([]any{"kind", kind}, args...)
	l.sinks[CategoryCombined].Error(msg, args...)
	l.sinks[CategoryError].Error(msg, args...)
}

// ============================================================================
// CATEGORY API
// ============================================================================

// Action records a recovery-action or user-action event.
func (l *Logger) Action(name string, args ...any) {
	args = append([]any{"action", name}, args...)
	l.sinks[CategoryActions].Info("action", args...)
}

// Perf records a performance measurement.
func (l *Logger) Perf(metric string, value float64, args ...any) {
	args = append([]any{"metric", metric, "value", value}, args...)
	l.sinks[CategoryPerformance].Info("perf", args...)
}

// Audit records a security-relevant event.
func (l *Logger) Audit(event string, args ...any) {
	args = append([]any{"event", event}, args...)
	l.sinks[CategorySecurity].Info("audit", args...)
}

// ============================================================================
// ACCESSORS
// ============================================================================

// ErrorCounts returns a copy of the error-by-kind tally.
func (l *Logger) ErrorCounts() map[string]int {
	l.tallyMu.Lock()
	defer l.tallyMu.Unlock()
	out := make(map[string]int, len(l.errorCounts))
	for k, v := range l.errorCounts {
		out[k] = v
	}
	return out
}

// Tail returns up to n recent entries for a category.
func (l *Logger) Tail(category string, n int) []string {
	bf, ok := l.files[category]
	if !ok {
		return nil
	}
	return bf.Tail(n)
}

// ============================================================================
// FLUSH LOOP
// ============================================================================

func (l *Logger) startFlushLoop() {
	l.loopMu.Lock()
	defer l.loopMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		ticker := l.clk.Ticker(l.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Flush()
			}
		}
	}()
}

// Flush writes all buffered entries now. Failures are reported on stderr;
// the affected buffers are retried on the next flush.
func (l *Logger) Flush() {
	for _, cat := range Categories {
		if err := l.files[cat].Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "log flush failed: %v\n", err)
		}
	}
}

// Close stops the flush loop and performs a final flush.
func (l *Logger) Close() {
	l.loopMu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.loopMu.Unlock()

	if cancel != nil {
		cancel()
		l.wg.Wait()
	}
	l.Flush()
}
