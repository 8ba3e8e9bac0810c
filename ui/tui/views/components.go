package views

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vigil/internal/health"
	"vigil/ui/tui/styles"
)

// ColorForStatus maps a health status tier to its display style.
func ColorForStatus(status string) lipgloss.Style {
	sStyle := styles.StatusStyle
	switch status {
	case health.StatusWarning:
		return sStyle.Foreground(lipgloss.Color("220")) // Gold
	case health.StatusError:
		return sStyle.Foreground(lipgloss.Color("208")) // Orange
	case health.StatusCritical:
		return sStyle.Foreground(lipgloss.Color("196")) // Red
	default:
		return sStyle.Foreground(lipgloss.Color("46")) // Green
	}
}

// ColorForSeverity maps an issue severity to its display style.
func ColorForSeverity(severity string) lipgloss.Style {
	sStyle := styles.StatusStyle
	switch severity {
	case "critical":
		return sStyle.Foreground(lipgloss.Color("196"))
	case "error":
		return sStyle.Foreground(lipgloss.Color("208"))
	case "warning":
		return sStyle.Foreground(lipgloss.Color("220"))
	default:
		return sStyle.Foreground(lipgloss.Color("46"))
	}
}

// Gauge renders a horizontal bar filled proportionally to value/max.
func Gauge(value, max float64, width int, style lipgloss.Style) string {
	if width < 1 {
		width = 1
	}
	if max <= 0 {
		max = 1
	}
	filled := int(float64(width) * value / max)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return style.Render(bar)
}
