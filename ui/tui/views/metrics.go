package views

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"vigil/ui/tui/state"
	"vigil/ui/tui/styles"
)

type MetricsView struct{}

func (v MetricsView) Render(s state.AppState, props ViewProps) string {
	header := MenuHeaderStyle.Width(props.Width).Render("Resource Telemetry")

	if s.Metrics == nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			lipgloss.NewStyle().Padding(2, 4).Render("Waiting for the first metrics sample..."),
			lipgloss.NewStyle().PaddingLeft(2).Foreground(styles.Subtle).Render("Press 'b' to go back"),
		)
	}

	m := s.Metrics
	info := lipgloss.NewStyle().
		Padding(1, 2).
		Render(fmt.Sprintf("Load: %.2f, %.2f, %.2f\nProcess uptime: %s\nHeap: %.1f MB • RSS: %.1f MB",
			m.LoadAvg1, m.LoadAvg5, m.LoadAvg15,
			(time.Duration(m.ProcUptimeSec) * time.Second).String(),
			float64(m.ProcHeapAlloc)/(1024*1024),
			float64(m.ProcRSS)/(1024*1024)))

	cpuChart := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Highlight).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("CPU %.1f%%", m.CPUPercent)),
			props.CPUChartView,
		))

	memChart := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Highlight).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Memory %.1f%%", m.MemPercent)),
			props.MemChartView,
		))

	content := lipgloss.JoinHorizontal(lipgloss.Top, cpuChart, memChart)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		info,
		content,
		lipgloss.NewStyle().Padding(1, 2).Foreground(styles.Subtle).Render("Press 'b' to go back"),
	)
}
