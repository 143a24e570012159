package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/synchro/internal/export"
	"github.com/san-kum/synchro/internal/field"
)

// Marker labels a world position on the heatmap.
type Marker struct {
	X, Y  float64
	Label rune
	Color lipgloss.Color
}

// Window is the world rectangle shown by the heatmap.
type Window struct {
	X0, X1, Y0, Y1 float64
	Cols, Rows     int
}

// WindowAround centers a window on (x, y) spanning ±halfX by ±halfY metres.
func WindowAround(x, y, halfX, halfY float64, cols, rows int) Window {
	return Window{X0: x - halfX, X1: x + halfX, Y0: y - halfY, Y1: y + halfY, Cols: cols, Rows: rows}
}

// Axes returns cell-centre coordinates along x and y.
func (w Window) Axes() (xs, ys []float64) {
	dx := (w.X1 - w.X0) / float64(w.Cols)
	dy := (w.Y1 - w.Y0) / float64(w.Rows)
	return field.Linspace(w.X0+dx/2, w.X1-dx/2, w.Cols), field.Linspace(w.Y0+dy/2, w.Y1-dy/2, w.Rows)
}

// cell returns the (row, col) of (x, y), with row 0 at the bottom.
func (w Window) cell(x, y float64) (int, int, bool) {
	col := int(math.Floor((x - w.X0) / (w.X1 - w.X0) * float64(w.Cols)))
	row := int(math.Floor((y - w.Y0) / (w.Y1 - w.Y0) * float64(w.Rows)))
	if col < 0 || col >= w.Cols || row < 0 || row >= w.Rows {
		return 0, 0, false
	}
	return row, col, true
}

// Heatmap renders the density inside w at time t, two terminal columns per
// cell, with +y at the top.
func Heatmap(f *field.Field, w Window, t float64, markers []Marker) string {
	if w.Cols <= 0 || w.Rows <= 0 {
		return ""
	}
	xs, ys := w.Axes()
	grid := f.SampleGrid(xs, ys, t)
	lo, hi := f.Bounds()

	labels := make(map[[2]int]Marker, len(markers))
	for _, m := range markers {
		if r, c, ok := w.cell(m.X, m.Y); ok {
			labels[[2]int{r, c}] = m
		}
	}

	var sb strings.Builder
	for r := w.Rows - 1; r >= 0; r-- {
		for c := 0; c < w.Cols; c++ {
			bg := lipgloss.Color(export.Ramp((grid[r][c] - lo) / math.Max(hi-lo, 1e-12)))
			style := lipgloss.NewStyle().Background(bg)
			if m, ok := labels[[2]int{r, c}]; ok {
				sb.WriteString(style.Foreground(m.Color).Bold(true).Render(string(m.Label) + " "))
				continue
			}
			sb.WriteString(style.Render("  "))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Legend renders the colour ramp between lo and hi.
func Legend(lo, hi float64, width int) string {
	var sb strings.Builder
	for i := 0; i < width; i++ {
		u := float64(i) / float64(max(width-1, 1))
		sb.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(export.Ramp(u))).Render(" "))
	}
	return Subtle.Render(fmt.Sprintf("%.2f ", lo)) + sb.String() + Subtle.Render(fmt.Sprintf(" %.2f kg/m³", hi))
}
