// Package metrics samples process and system resource usage and maintains
// the rolling history and performance counters the health scorer reads.
package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// ============================================================================
// DATA STRUCTURES
// ============================================================================

// Snapshot is an immutable point-in-time record of resource usage.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// System
	CPUPercent    float64 `json:"cpuPercent"`
	MemTotal      uint64  `json:"memTotal"`
	MemUsed       uint64  `json:"memUsed"`
	MemFree       uint64  `json:"memFree"`
	MemPercent    float64 `json:"memPercent"`
	LoadAvg1      float64 `json:"loadAvg1"`
	LoadAvg5      float64 `json:"loadAvg5"`
	LoadAvg15     float64 `json:"loadAvg15"`

	// Process
	ProcUptimeSec  float64 `json:"procUptimeSec"`
	ProcCPUPercent float64 `json:"procCpuPercent"`
	ProcRSS        uint64  `json:"procRss"`
	ProcHeapAlloc  uint64  `json:"procHeapAlloc"`
}

// Provider defines the contract for a metrics source.
type Provider interface {
	Collect(ctx context.Context) (*Snapshot, error)
}

// ============================================================================
// COLLECTOR
// ============================================================================

// Collector produces Snapshots for the current process and host.
type Collector struct {
	cfg     Config
	proc    *process.Process
	started time.Time
}

// NewCollector creates a collector bound to the current process.
func NewCollector(cfg Config) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open current process: %w", err)
	}
	return &Collector{cfg: cfg, proc: proc, started: time.Now()}, nil
}

// Collect gathers one snapshot. Process CPU usage is measured by sampling
// process CPU time over the configured window and normalizing against
// elapsed wall time, capped at 100. The caller is blocked for at most the
// sampling window.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	procCPU, err := c.sampleProcessCPU(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sample process cpu: %w", err)
	}

	sysCPU, err := systemCPUPercent(cpu.PercentWithContext(ctx, 0, false))
	if err != nil {
		return nil, err
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory metrics: %w", err)
	}

	// Load averages are unavailable on some platforms; zero values are fine.
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		avg = &load.AvgStat{}
	}

	rss := uint64(0)
	if mi, err := c.proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		rss = mi.RSS
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return &Snapshot{
		Timestamp:      time.Now(),
		CPUPercent:     sysCPU,
		MemTotal:       vm.Total,
		MemUsed:        vm.Used,
		MemFree:        vm.Free,
		MemPercent:     vm.UsedPercent,
		LoadAvg1:       avg.Load1,
		LoadAvg5:       avg.Load5,
		LoadAvg15:      avg.Load15,
		ProcUptimeSec:  time.Since(c.started).Seconds(),
		ProcCPUPercent: procCPU,
		ProcRSS:        rss,
		ProcHeapAlloc:  ms.HeapAlloc,
	}, nil
}

// systemCPUPercent reduces gopsutil's aggregate cpu result to a single
// value. An empty result without an error still fails, with its own
// message rather than a wrapped nil.
func systemCPUPercent(vals []float64, err error) (float64, error) {
	if err != nil {
		return 0, fmt.Errorf("failed to get system cpu percent: %w", err)
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("system cpu percent returned no values")
	}
	return vals[0], nil
}

func (c *Collector) sampleProcessCPU(ctx context.Context) (float64, error) {
	before, err := c.proc.TimesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	start := time.Now()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(c.cfg.SampleWindow):
	}

	after, err := c.proc.TimesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0, nil
	}
	busy := (after.User + after.System) - (before.User + before.System)
	pct := busy / elapsed * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}
