package views

import (
	"strings"

	"vigil/ui/tui/state"
)

func RenderMenu(s state.AppState, width, height, cursor int, animCursor float64, mouseX, mouseY int) string {
	v := MenuView{}
	return v.Render(s, ViewProps{
		Width:      width,
		Height:     height,
		MenuCursor: cursor,
		AnimCursor: animCursor,
		MouseX:     mouseX,
		MouseY:     mouseY,
	})
}

func RenderDashboard(s state.AppState, spinnerView, cpuChartView string) string {
	v := DashboardView{}
	return v.Render(s, ViewProps{
		SpinnerView:  spinnerView,
		CPUChartView: cpuChartView,
	})
}

func RenderIssues(s state.AppState, width, height int) string {
	v := IssuesView{}
	return v.Render(s, ViewProps{
		Width:  width,
		Height: height,
	})
}

func RenderConsole(s state.AppState, width, height, scrollY int) string {
	v := ConsoleView{Content: strings.Join(s.ConsoleLogs, "\n")}
	return v.Render(s, ViewProps{
		Width:   width,
		Height:  height,
		ScrollY: scrollY,
	})
}

func RenderMetrics(s state.AppState, cpuChartView, memChartView string, width, height int) string {
	v := MetricsView{}
	return v.Render(s, ViewProps{
		Width:        width,
		Height:       height,
		CPUChartView: cpuChartView,
		MemChartView: memChartView,
	})
}
