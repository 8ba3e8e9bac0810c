package styles

import "github.com/charmbracelet/lipgloss"

// Brand is the vigil accent, shared by the menu header, selected menu
// items, and the title bar.
var (
	Brand     = lipgloss.Color("#2490f2")
	Subtle    = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#3C4248"}
	Highlight = lipgloss.AdaptiveColor{Light: "#1A7AD1", Dark: "#2490f2"}

	TitleStyle = lipgloss.NewStyle().
			MarginLeft(1).
			MarginRight(5).
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("#EAF4FF")).
			Background(Brand)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Highlight).
			Padding(1, 2).
			Margin(1, 1)

	StatusStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))
)
