// Package console renders a compact one-shot health report for headless
// runs and scripts.
package console

import (
	"fmt"
	"io"
	"strings"

	"vigil/internal/appstate"
	"vigil/internal/health"
	"vigil/internal/metrics"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Print renders the health report to the writer in a highly compact format.
func Print(w io.Writer, report *health.Report, snap *metrics.Snapshot, totals metrics.Totals, issues []appstate.Issue) {
	fmt.Fprintf(w, "%s%s %s%s\n", colorCyan, "■", "VIGIL HEALTH REPORT", colorReset)

	// Health section
	fmt.Fprintf(w, "%s─ Health%s\n", colorCyan, colorReset)
	if report != nil {
		color := colorFor(report.Status)
		fmt.Fprintf(w, "  %s %s%d/100 [%s]%s\n", leader("Score"), color, report.Score, report.Status, colorReset)
		for _, line := range report.Issues {
			fmt.Fprintf(w, "  %s• %s%s\n", colorYellow, line, colorReset)
		}
	} else {
		fmt.Fprintf(w, "  %s %sno report%s\n", leader("Score"), colorRed, colorReset)
	}

	// Resource section
	if snap != nil {
		fmt.Fprintf(w, "%s─ Resources%s\n", colorCyan, colorReset)
		fmt.Fprintf(w, "  %s %9.1f%%\n", leader("System CPU"), snap.CPUPercent)
		fmt.Fprintf(w, "  %s %9.1f%%\n", leader("System memory"), snap.MemPercent)
		fmt.Fprintf(w, "  %s %9.1f%%\n", leader("Process CPU"), snap.ProcCPUPercent)
		fmt.Fprintf(w, "  %s %8.1fMB\n", leader("Process RSS"), float64(snap.ProcRSS)/(1024*1024))
	}

	// Counters section
	fmt.Fprintf(w, "%s─ Counters%s\n", colorCyan, colorReset)
	fmt.Fprintf(w, "  %s %10d\n", leader("Requests"), totals.Requests.Total)
	fmt.Fprintf(w, "  %s %9.1f%%\n", leader("Error rate"), totals.ErrorRatePct)
	fmt.Fprintf(w, "  %s %7.1f ms\n", leader("Avg response"), totals.AvgResponseMs)

	// Issues section
	fmt.Fprintf(w, "%s─ Issues%s\n", colorCyan, colorReset)
	if len(issues) == 0 {
		fmt.Fprintf(w, "  %snone%s\n", colorGreen, colorReset)
	}
	for _, iss := range issues {
		color := colorGreen
		switch iss.Severity {
		case "critical", "error":
			color = colorRed
		case "warning":
			color = colorYellow
		}
		msg := iss.Message
		if len(msg) > 48 {
			msg = msg[:45] + "..."
		}
		fmt.Fprintf(w, "  %s%-10s%s %s: %s\n", color, "["+iss.Severity+"]", colorReset, iss.ID, msg)
	}
	fmt.Fprintln(w)
}

// leader pads a label with a dots leader to a fixed width.
func leader(label string) string {
	if len(label) > 20 {
		label = label[:17] + "..."
	}
	dots := strings.Repeat("·", 22-len(label))
	return label + colorCyan + dots + colorReset
}

func colorFor(status string) string {
	switch status {
	case health.StatusWarning:
		return colorYellow
	case health.StatusError, health.StatusCritical:
		return colorRed
	default:
		return colorGreen
	}
}
