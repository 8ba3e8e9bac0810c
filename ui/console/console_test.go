package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"vigil/internal/appstate"
	"vigil/internal/health"
	"vigil/internal/metrics"
)

func TestColorFor(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{health.StatusWarning, colorYellow},
		{health.StatusError, colorRed},
		{health.StatusCritical, colorRed},
		{health.StatusHealthy, colorGreen},
		{"", colorGreen},
	}

	for _, tt := range tests {
		result := colorFor(tt.status)
		if result != tt.expected {
			t.Errorf("colorFor(%q) = %q; want %q", tt.status, result, tt.expected)
		}
	}
}

func TestPrint(t *testing.T) {
	report := &health.Report{
		Status:    health.StatusWarning,
		Score:     75,
		Issues:    []string{"cpu elevated: 70.0% (limit 80.0%)"},
		Timestamp: time.Now(),
	}
	snap := &metrics.Snapshot{
		CPUPercent:     70.0,
		MemPercent:     55.0,
		ProcCPUPercent: 12.0,
		ProcRSS:        256 * 1024 * 1024,
	}
	issues := []appstate.Issue{
		{ID: "camera-low-fps", Category: "camera", Severity: "warning", Message: "frame rate dropped"},
		{ID: "obs-disconnected", Category: "obs", Severity: "error", Message: "OBS connection lost"},
	}

	var buf bytes.Buffer
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Print panicked: %v", r)
		}
	}()
	Print(&buf, report, snap, metrics.Totals{}, issues)

	out := buf.String()
	for _, want := range []string{"VIGIL HEALTH REPORT", "75/100", "camera-low-fps", "obs-disconnected"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestPrintNilReport(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, nil, nil, metrics.Totals{}, nil)
	if !strings.Contains(buf.String(), "no report") {
		t.Error("expected placeholder for missing report")
	}
}
