package components

import (
	"github.com/NimbleMarkets/ntcharts/canvas"
	"github.com/NimbleMarkets/ntcharts/linechart"
)

const maxPoints = 31

// HistoryWidget renders a rolling window of percentage values as a
// braille line chart. Used for the CPU and memory history panes.
type HistoryWidget struct {
	Chart   linechart.Model
	History []float64
	Width   int
	Height  int
}

func NewHistoryWidget(width, height int) *HistoryWidget {
	// width, height, minX, maxX, minY, maxY
	lc := linechart.New(width, height, 0, float64(maxPoints-1), 0, 100)
	return &HistoryWidget{
		Chart:   lc,
		History: make([]float64, 0, maxPoints),
		Width:   width,
		Height:  height,
	}
}

// Push appends a value, evicting the oldest beyond the window.
func (c *HistoryWidget) Push(value float64) {
	c.History = append(c.History, value)
	if len(c.History) > maxPoints {
		c.History = c.History[1:]
	}
}

func (c *HistoryWidget) Resize(w, h int) {
	c.Width = w
	c.Height = h
	c.Chart.Resize(w, h)
}

func (c *HistoryWidget) View() string {
	c.Chart.Clear()
	for i := 0; i < len(c.History)-1; i++ {
		y1 := c.History[i]
		y2 := c.History[i+1]
		c.Chart.DrawBrailleLine(
			canvas.Float64Point{X: float64(i), Y: y1},
			canvas.Float64Point{X: float64(i + 1), Y: y2},
		)
	}
	c.Chart.DrawXYAxisAndLabel()
	return c.Chart.View()
}
