package views

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"vigil/ui/tui/state"
	"vigil/ui/tui/styles"
)

type DashboardView struct{}

func (v DashboardView) Render(s state.AppState, props ViewProps) string {
	if s.Err != nil {
		return fmt.Sprintf("Error: %v", s.Err)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Left,
		props.SpinnerView,
		styles.TitleStyle.Render("Vigil Dashboard"),
		fmt.Sprintf(" Last Update: %s", s.LastUpdate.Format("15:04:05")),
	)

	// Health card: score gauge, status tier, alerts.
	var healthCol string
	if s.Health != nil {
		statusStr := ColorForStatus(s.Health.Status).Render(s.Health.Status)
		gauge := Gauge(float64(s.Health.Score), 100, 30, ColorForStatus(s.Health.Status))

		content := fmt.Sprintf("Score  : %3d/100 %s\nStatus : %s\n", s.Health.Score, gauge, statusStr)
		for _, issue := range s.Health.Issues {
			content += "• " + issue + "\n"
		}
		for _, alert := range s.Health.Alerts {
			content += ColorForStatus(alert.Level).Render(
				fmt.Sprintf("! %s: %.1f (limit %.1f)", alert.Type, alert.Current, alert.Threshold)) + "\n"
		}

		healthCol = zone.Mark("health_box", styles.CardStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				lipgloss.NewStyle().Bold(true).Render("Health"),
				content,
			),
		))
	}

	// Resource card with the CPU history chart.
	var resourceCol string
	if s.Metrics != nil {
		content := fmt.Sprintf("% -15s : %.1f%%\n% -15s : %.1f%%\n% -15s : %.2f\n% -15s : %.1f%%\n% -15s : %.1f MB",
			"System CPU", s.Metrics.CPUPercent,
			"System Memory", s.Metrics.MemPercent,
			"Load (1m)", s.Metrics.LoadAvg1,
			"Process CPU", s.Metrics.ProcCPUPercent,
			"Process RSS", float64(s.Metrics.ProcRSS)/(1024*1024),
		)
		resourceCol = zone.Mark("resource_box", styles.CardStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				lipgloss.NewStyle().Bold(true).Render("Resources"),
				content,
				props.CPUChartView,
			),
		))
	}

	// Counters card.
	countersContent := fmt.Sprintf("% -15s : %d (%d failed)\n% -15s : %d (%d failed)\n% -15s : %.1f%%\n% -15s : %.1f ms\n% -15s : %d detected / %d resolved",
		"Requests", s.Totals.Requests.Total, s.Totals.Requests.Error,
		"Actions", s.Totals.Actions.Total, s.Totals.Actions.Error,
		"Error rate", s.Totals.ErrorRatePct,
		"Avg response", s.Totals.AvgResponseMs,
		"Issues", s.Totals.Issues.Detected, s.Totals.Issues.Resolved,
	)
	countersCol := styles.CardStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render("Counters"),
			countersContent,
		),
	)

	// Issue summary card.
	issueContent := "none"
	if len(s.Issues) > 0 {
		issueContent = ""
		for _, iss := range s.Issues {
			issueContent += fmt.Sprintf("%s %s\n", ColorForSeverity(iss.Severity).Render("["+iss.Severity+"]"), iss.ID)
		}
	}
	issuesCol := styles.CardStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render("Active Issues"),
			issueContent,
		),
	)

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, healthCol, resourceCol)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, countersCol, issuesCol)

	return zone.Scan(lipgloss.JoinVertical(lipgloss.Left,
		header,
		row1,
		row2,
		lipgloss.NewStyle().Foreground(styles.Subtle).Render("\nPress 'b' to go back, 'q' to quit"),
	))
}
