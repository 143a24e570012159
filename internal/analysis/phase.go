package analysis

import (
	"math"
	"strings"

	"github.com/san-kum/synchro/internal/sim"
)

type Point struct{ X, Y float64 }

// Axis extracts one coordinate from a sample.
type Axis func(s sim.Sample) float64

var (
	PhaseErrorAxis Axis = func(s sim.Sample) float64 { return s.PhaseError }
	SpeedErrorAxis Axis = func(s sim.Sample) float64 { return s.SpeedErrorRPM }
	CorrectionAxis Axis = func(s sim.Sample) float64 { return s.Correction }
)

// PhasePortrait is a 2D trajectory through controller error space.
type PhasePortrait struct {
	Points []Point
}

// GeneratePhasePortrait projects recorded samples onto (x, y). The default
// projection is (phase error, speed error).
func GeneratePhasePortrait(samples []sim.Sample, x, y Axis) *PhasePortrait {
	if x == nil {
		x = PhaseErrorAxis
	}
	if y == nil {
		y = SpeedErrorAxis
	}
	p := &PhasePortrait{Points: make([]Point, 0, len(samples))}
	for _, s := range samples {
		p.Points = append(p.Points, Point{X: x(s), Y: y(s)})
	}
	return p
}

// GenerateRevolutionSection samples the portrait once per main-rotor
// revolution, when the main blade angle wraps past zero. A locked pair
// collapses to a tight cluster.
func GenerateRevolutionSection(samples []sim.Sample, x, y Axis) *PhasePortrait {
	if x == nil {
		x = PhaseErrorAxis
	}
	if y == nil {
		y = SpeedErrorAxis
	}
	p := &PhasePortrait{}
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Main.Theta, samples[i].Main.Theta
		if prev-cur > math.Pi {
			p.Points = append(p.Points, Point{X: x(samples[i]), Y: y(samples[i])})
		}
	}
	return p
}

// PhasePortraitToASCII renders the portrait on a width×height character grid.
func PhasePortraitToASCII(portrait *PhasePortrait, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y
	for _, p := range portrait.Points {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	// axes through the origin when visible
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
