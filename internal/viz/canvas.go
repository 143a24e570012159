package viz

import (
	"math"
	"strings"
)

const brailleBlank = 0x2800

// dotBits maps a dot inside a 2×4 Braille cell, indexed [row][col], to its
// bit in the code point offset from U+2800.
var dotBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a Width×Height grid of Braille cells addressed in dots, so the
// drawable area is 2·Width by 4·Height with y growing downward.
type Canvas struct {
	Width, Height int
	cells         []uint8
}

func NewCanvas(w, h int) *Canvas {
	return &Canvas{Width: w, Height: h, cells: make([]uint8, w*h)}
}

func (c *Canvas) locate(x, y int) (int, uint8, bool) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return 0, 0, false
	}
	return (y/4)*c.Width + x/2, dotBits[y%4][x%2], true
}

// Set turns on the dot at (x, y); dots off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if i, bit, ok := c.locate(x, y); ok {
		c.cells[i] |= bit
	}
}

// Dot reports whether (x, y) is on.
func (c *Canvas) Dot(x, y int) bool {
	i, bit, ok := c.locate(x, y)
	return ok && c.cells[i]&bit != 0
}

func (c *Canvas) Clear() {
	clear(c.cells)
}

// DrawLine walks from (x0, y0) to (x1, y1) one dot per step along the
// longer axis.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := float64(x1-x0), float64(y1-y0)
	n := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if n == 0 {
		c.Set(x0, y0)
		return
	}
	for k := 0; k <= n; k++ {
		f := float64(k) / float64(n)
		c.Set(x0+int(math.Round(f*dx)), y0+int(math.Round(f*dy)))
	}
}

// DrawCircle draws a circle outline of radius r dots (midpoint algorithm).
func (c *Canvas) DrawCircle(cx, cy, r int) {
	x, y, d := r, 0, 1-r
	for x >= y {
		for _, p := range [8][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			c.Set(cx+p[0], cy+p[1])
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

// DrawDial draws a rotor disc with one spoke per blade. theta is the blade
// angle in radians, measured counter-clockwise from +x.
func (c *Canvas) DrawDial(cx, cy, r int, theta float64, blades int) {
	c.DrawCircle(cx, cy, r)
	for k := 0; k < blades; k++ {
		a := theta + float64(k)*2*math.Pi/float64(blades)
		// screen y grows downward
		x := cx + int(math.Round(float64(r-1)*math.Cos(a)))
		y := cy - int(math.Round(float64(r-1)*math.Sin(a)))
		c.DrawLine(cx, cy, x, y)
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Height * (c.Width*3 + 1))
	for row := 0; row < c.Height; row++ {
		for _, bits := range c.cells[row*c.Width : (row+1)*c.Width] {
			b.WriteRune(brailleBlank + rune(bits))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
