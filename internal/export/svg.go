package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/synchro/internal/sim"
)

type Point struct{ X, Y float64 }

// Series is one polyline in a panel.
type Series struct {
	Name   string
	Color  string
	Points []Point
}

// Panel is a stacked chart sharing the time axis.
type Panel struct {
	Title  string
	Unit   string
	Series []Series
}

const (
	background = "#0a0a0a"
	gridColor  = "#333333"
	textColor  = "#cccccc"
	margin     = 48.0
)

// TelemetryPanels lays out the standard run view: both rotor speeds, the
// phase error and the controller correction.
func TelemetryPanels(samples []sim.Sample) []Panel {
	main := make([]Point, len(samples))
	follower := make([]Point, len(samples))
	phase := make([]Point, len(samples))
	corr := make([]Point, len(samples))
	for i, s := range samples {
		main[i] = Point{s.Time, s.Main.RPM}
		follower[i] = Point{s.Time, s.Follower.RPM}
		phase[i] = Point{s.Time, s.PhaseError}
		corr[i] = Point{s.Time, s.Correction}
	}
	return []Panel{
		{Title: "rotor speed", Unit: "RPM", Series: []Series{
			{Name: "main", Color: "#00ff88", Points: main},
			{Name: "follower", Color: "#ff8800", Points: follower},
		}},
		{Title: "phase error", Unit: "rad", Series: []Series{
			{Name: "phase", Color: "#00aaff", Points: phase},
		}},
		{Title: "correction", Unit: "RPM", Series: []Series{
			{Name: "correction", Color: "#ff00aa", Points: corr},
		}},
	}
}

// WriteTelemetrySVG renders samples as stacked panels.
func WriteTelemetrySVG(w io.Writer, title string, samples []sim.Sample, width, height int) error {
	_, err := io.WriteString(w, PanelsToSVG(title, TelemetryPanels(samples), width, height))
	return err
}

// PanelsToSVG stacks panels vertically in a width×height document.
func PanelsToSVG(title string, panels []Panel, width, height int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="monospace" font-size="11">
<rect width="100%%" height="100%%" fill="%s"/>
<text x="%.0f" y="18" fill="%s" font-size="14">%s</text>
`, width, height, width, height, background, margin, textColor, escape(title))

	if len(panels) == 0 {
		sb.WriteString("</svg>\n")
		return sb.String()
	}

	top := 28.0
	ph := (float64(height) - top) / float64(len(panels))
	for i, p := range panels {
		writePanel(&sb, p, margin, top+float64(i)*ph, float64(width)-1.5*margin, ph-24)
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

func writePanel(sb *strings.Builder, p Panel, x0, y0, w, h float64) {
	minX, maxX, minY, maxY := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	for _, s := range p.Series {
		for _, pt := range s.Points {
			if math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0) {
				continue
			}
			minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
			minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	fmt.Fprintf(sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="%s"/>
<text x="%.1f" y="%.1f" fill="%s">%s [%s]</text>
<text x="%.1f" y="%.1f" fill="%s" text-anchor="end">%.3g</text>
<text x="%.1f" y="%.1f" fill="%s" text-anchor="end">%.3g</text>
`, x0, y0+12, w, h, gridColor,
		x0, y0+8, textColor, escape(p.Title), escape(p.Unit),
		x0-4, y0+20, textColor, minY+rangeY,
		x0-4, y0+12+h, textColor, minY)

	for _, s := range p.Series {
		if len(s.Points) < 2 {
			continue
		}
		fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.2" d="`, s.Color)
		pen := "M"
		for _, pt := range s.Points {
			if math.IsNaN(pt.Y) || math.IsInf(pt.Y, 0) {
				pen = "M"
				continue
			}
			x := x0 + (pt.X-minX)/rangeX*w
			y := y0 + 12 + h - (pt.Y-minY)/rangeY*h
			fmt.Fprintf(sb, "%s%.1f,%.1f ", pen, x, y)
			pen = "L"
		}
		sb.WriteString("\"/>\n")
	}
}

// HeatmapSVG renders a density grid (rows by y, columns by x) with a
// blue-to-red ramp between lo and hi.
func HeatmapSVG(grid [][]float64, lo, hi float64, cell int) string {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return ""
	}
	if cell <= 0 {
		cell = 4
	}
	rows, cols := len(grid), len(grid[0])
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" shape-rendering="crispEdges">
`, cols*cell, rows*cell)
	for r := 0; r < rows; r++ {
		// y grows upward in the field, downward in SVG
		y := (rows - 1 - r) * cell
		for c, v := range grid[r] {
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>
`, c*cell, y, cell, cell, Ramp((v-lo)/span))
		}
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

// Ramp maps u∈[0,1] onto a blue→white→red hex colour.
func Ramp(u float64) string {
	if math.IsNaN(u) {
		u = 0.5
	}
	u = math.Max(0, math.Min(1, u))
	var r, g, b float64
	if u < 0.5 {
		k := u / 0.5
		r, g, b = k, k, 1
	} else {
		k := (u - 0.5) / 0.5
		r, g, b = 1, 1-k, 1-k
	}
	return fmt.Sprintf("#%02x%02x%02x", int(r*255+0.5), int(g*255+0.5), int(b*255+0.5))
}

// TrajectoryToSVG draws a single polyline, e.g. a phase portrait.
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}
	return PanelsToSVG("", []Panel{{Series: []Series{{Color: strokeColor, Points: points}}}}, width, height)
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
