// Package monitor runs the periodic metrics collection loop and serves
// the current health report derived from it.
package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/benbjohnson/clock"

	"vigil/internal/health"
	"vigil/internal/logging"
	"vigil/internal/metrics"
)

// Monitor drives a metrics.Provider on the collection interval, keeps the
// rolling history and performance counters, and scores health on demand.
type Monitor struct {
	cfg        metrics.Config
	provider   metrics.Provider
	history    *metrics.History
	counters   *metrics.Counters
	thresholds health.Thresholds
	log        *logging.Logger
	clk        clock.Clock

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithClock injects a clock for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clk = c }
}

// WithThresholds overrides the health thresholds.
func WithThresholds(t health.Thresholds) Option {
	return func(m *Monitor) { m.thresholds = t }
}

// New creates a monitor over the given provider.
func New(cfg metrics.Config, provider metrics.Provider, log *logging.Logger, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil || log == nil {
		return nil, errors.New("provider and logger are required")
	}
	m := &Monitor{
		cfg:        cfg,
		provider:   provider,
		history:    metrics.NewHistory(cfg.Retention),
		counters:   metrics.NewCounters(cfg.CounterCap),
		thresholds: health.DefaultThresholds(),
		log:        log,
		clk:        clock.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Counters exposes the performance counters for producers to record into.
func (m *Monitor) Counters() *metrics.Counters {
	return m.counters
}

// History exposes the rolling snapshot window.
func (m *Monitor) History() *metrics.History {
	return m.history
}

// CollectOnce runs a single collection cycle immediately.
func (m *Monitor) CollectOnce(ctx context.Context) (*metrics.Snapshot, error) {
	snap, err := m.provider.Collect(ctx)
	if err != nil {
		return nil, err
	}
	m.history.Append(snap)
	return snap, nil
}

// Current returns the health report for the latest snapshot, together
// with that snapshot and the counter totals it was scored against.
func (m *Monitor) Current(ctx context.Context) (*health.Report, *metrics.Snapshot, metrics.Totals) {
	snap := m.history.Latest()
	totals := m.counters.Totals()
	report := health.Score(snap, totals, m.thresholds)
	return &report, snap, totals
}

// Start begins the collection and maintenance loops.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	go m.collectLoop(ctx)
	go m.maintainLoop(ctx)
	return nil
}

// Stop gracefully stops the monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) collectLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := m.clk.Ticker(m.cfg.CollectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CollectOnce(ctx); err != nil {
				m.log.Warn("metrics collection failed", "error", err.Error())
			}
		}
	}
}

func (m *Monitor) maintainLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := m.clk.Ticker(m.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := m.history.Maintain(m.clk.Now())
			m.counters.Maintain()
			if evicted > 0 {
				m.log.Debug("pruned metrics history", "evicted", evicted)
			}
		}
	}
}
