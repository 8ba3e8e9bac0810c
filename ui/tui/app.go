// Package tui is the interactive terminal frontend for the monitoring core.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"vigil/internal/appstate"
	"vigil/internal/health"
	"vigil/internal/logging"
	"vigil/internal/metrics"
	"vigil/internal/monitor"
	"vigil/ui/tui/components"
	"vigil/ui/tui/state"
	"vigil/ui/tui/views"
)

const consoleTail = 100

// Sources bundles the backends the TUI reads from. The TUI never writes
// to them except through the detector's action path.
type Sources struct {
	Monitor *monitor.Monitor
	Issues  func() []appstate.Issue
	Log     *logging.Logger
}

// MainModel is the Bubble Tea Model acting as the Controller.
type MainModel struct {
	sources        Sources
	state          state.AppState
	spinner        spinner.Model
	cpuChart       *components.HistoryWidget
	memChart       *components.HistoryWidget
	menuCursor     int
	animCursor     float64
	velocity       float64 // Physics velocity
	spring         harmonica.Spring
	consoleScrollY int
	mouseX         int
	mouseY         int
	quitting       bool
	width          int
	height         int
}

// Messages
type TickMsg time.Time
type AnimateMsg time.Time
type StatusLoadedMsg struct {
	Report  *health.Report
	Metrics *metrics.Snapshot
	Totals  metrics.Totals
	Issues  []appstate.Issue
	Logs    []string
}

func InitialModel(sources Sources) MainModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	// Faster spring response with damping to prevent overshoot
	spring := harmonica.NewSpring(harmonica.FPS(60), 12.0, 0.9)

	return MainModel{
		sources:  sources,
		spinner:  s,
		cpuChart: components.NewHistoryWidget(30, 10),
		memChart: components.NewHistoryWidget(30, 10),
		spring:   spring,
		state: state.AppState{
			CurrentPage: state.PageMenu,
		},
	}
}

func (m *MainModel) Init() tea.Cmd {
	zone.NewGlobal()
	return tea.Batch(
		m.spinner.Tick,
		fetchStatusCmd(m.sources),
		tickCmd(),
		animateCmd(),
	)
}

// Commands
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second*1, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func animateCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*16, func(t time.Time) tea.Msg {
		return AnimateMsg(t)
	})
}

func fetchStatusCmd(src Sources) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		report, snap, totals := src.Monitor.Current(ctx)
		msg := StatusLoadedMsg{
			Report:  report,
			Metrics: snap,
			Totals:  totals,
		}
		if src.Issues != nil {
			msg.Issues = src.Issues()
		}
		if src.Log != nil {
			msg.Logs = src.Log.Tail(logging.CategoryCombined, consoleTail)
		}
		return msg
	}
}

func (m *MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case AnimateMsg:
		return m.handleAnimateMsg(msg)

	case tea.WindowSizeMsg:
		return m.handleWindowSizeMsg(msg)

	case TickMsg:
		return m, tea.Batch(
			fetchStatusCmd(m.sources),
			tickCmd(),
		)

	case StatusLoadedMsg:
		return m.handleStatusLoadedMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)
	}

	return m, nil
}

func (m *MainModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	if m.state.CurrentPage == state.PageMenu {
		switch msg.String() {
		case "up", "k":
			if m.menuCursor > 0 {
				m.menuCursor--
			}
		case "down", "j":
			if m.menuCursor < len(views.MenuOptions)-1 {
				m.menuCursor++
			}
		case "enter":
			m.navigateTo(m.menuCursor)
		}
		return m, nil
	}

	if m.state.CurrentPage == state.PageConsole {
		switch msg.String() {
		case "up", "k":
			if m.consoleScrollY > 0 {
				m.consoleScrollY--
			}
		case "down", "j":
			m.consoleScrollY++
		}
	}

	if msg.String() == "b" || msg.String() == "esc" || msg.String() == "backspace" {
		m.state.CurrentPage = state.PageMenu
		m.consoleScrollY = 0
		return m, nil
	}

	return m, nil
}

func (m *MainModel) navigateTo(cursor int) {
	switch cursor {
	case 0:
		m.state.CurrentPage = state.PageDashboard
	case 1:
		m.state.CurrentPage = state.PageIssues
	case 2:
		m.state.CurrentPage = state.PageConsole
	case 3:
		m.state.CurrentPage = state.PageMetrics
	}
}

func (m *MainModel) handleAnimateMsg(msg AnimateMsg) (tea.Model, tea.Cmd) {
	var v float64 = m.velocity
	m.animCursor, v = m.spring.Update(m.animCursor, float64(m.menuCursor), v)
	m.velocity = v
	return m, animateCmd()
}

func (m *MainModel) handleWindowSizeMsg(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	newW := msg.Width/2 - 6
	if newW > 10 {
		m.cpuChart.Resize(newW, 10)
		m.memChart.Resize(newW, 10)
	}
	return m, nil
}

func (m *MainModel) handleStatusLoadedMsg(msg StatusLoadedMsg) (tea.Model, tea.Cmd) {
	m.state.Health = msg.Report
	m.state.Metrics = msg.Metrics
	m.state.Totals = msg.Totals
	m.state.Issues = msg.Issues
	m.state.ConsoleLogs = msg.Logs
	m.state.LastUpdate = time.Now()

	if msg.Metrics != nil {
		m.cpuChart.Push(msg.Metrics.CPUPercent)
		m.memChart.Push(msg.Metrics.MemPercent)
		m.state.CPUHistory = m.cpuChart.History
		m.state.MemHistory = m.memChart.History
	}
	return m, nil
}

func (m *MainModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	m.mouseX = msg.X
	m.mouseY = msg.Y

	if msg.Action == tea.MouseActionRelease && m.state.CurrentPage == state.PageMenu {
		for i := range views.MenuOptions {
			if zone.Get(fmt.Sprintf("menu_%d", i)).InBounds(msg) {
				m.menuCursor = i
				m.navigateTo(i)
				return m, nil
			}
		}
	}
	return m, nil
}

func (m *MainModel) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	switch m.state.CurrentPage {
	case state.PageMenu:
		return views.RenderMenu(m.state, m.width, m.height, m.menuCursor, m.animCursor, m.mouseX, m.mouseY)
	case state.PageDashboard:
		return views.RenderDashboard(m.state, m.spinner.View(), m.cpuChart.View())
	case state.PageIssues:
		return views.RenderIssues(m.state, m.width, m.height)
	case state.PageConsole:
		return views.RenderConsole(m.state, m.width, m.height, m.consoleScrollY)
	case state.PageMetrics:
		return views.RenderMetrics(m.state, m.cpuChart.View(), m.memChart.View(), m.width, m.height)
	default:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Render("View Under Construction\n\nPress 'b' to go back"),
		)
	}
}

func Start(sources Sources) error {
	m := InitialModel(sources)
	p := tea.NewProgram(
		&m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := p.Run()
	return err
}
