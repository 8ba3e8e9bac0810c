package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vigil/ui/tui/state"
	"vigil/ui/tui/styles"
)

type IssuesView struct{}

func (v IssuesView) Render(s state.AppState, props ViewProps) string {
	header := MenuHeaderStyle.Width(props.Width).Render("Active Issues")

	if len(s.Issues) == 0 {
		empty := lipgloss.NewStyle().
			Padding(2, 4).
			Foreground(lipgloss.Color("46")).
			Render("No active issues. All subsystems nominal.")
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			empty,
			lipgloss.NewStyle().PaddingLeft(2).Foreground(styles.Subtle).Render("Press 'b' to go back"),
		)
	}

	var cards []string
	for _, iss := range s.Issues {
		badge := ColorForSeverity(iss.Severity).Render(strings.ToUpper(iss.Severity))
		title := fmt.Sprintf("%s  %s (%s)", badge, iss.ID, iss.Category)

		body := iss.Message
		if iss.Suggestion != "" {
			body += "\n" + lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#888")).Render("→ "+iss.Suggestion)
		}
		if len(iss.Actions) > 0 {
			var acts []string
			for _, a := range iss.Actions {
				label := a.ID
				if !a.Available {
					label += " (unavailable)"
				}
				acts = append(acts, label)
			}
			body += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("#aaa")).Render("actions: "+strings.Join(acts, ", "))
		}
		body += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("#555")).Render("since "+iss.DetectedAt.Format("15:04:05"))

		cards = append(cards, styles.CardStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				lipgloss.NewStyle().Bold(true).Render(title),
				body,
			),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinVertical(lipgloss.Left, cards...),
		lipgloss.NewStyle().PaddingLeft(2).Foreground(styles.Subtle).Render("Press 'b' to go back"),
	)
}
