package analysis

import (
	"math"

	"github.com/san-kum/synchro/internal/field"
)

// DriftTolerance is the maximum relative error accepted by VerifyDrift.
const DriftTolerance = 0.01

type DriftCheck struct {
	X, Y, Dt float64

	Before        float64 // ρ(x, y, 0)
	After         float64 // ρ(x + V·dt, y, dt)
	RelativeError float64 // |Before − After| / (ρmax − ρmin)
	OK            bool
}

// VerifyDrift checks that the field translates rigidly along +x: the value
// seen at (x, y) at t = 0 must reappear at (x + V·dt, y) at t = dt.
func VerifyDrift(f *field.Field, x, y, dt float64) DriftCheck {
	cfg := f.Config()
	c := DriftCheck{X: x, Y: y, Dt: dt}
	c.Before = f.Sample(x, y, 0)
	c.After = f.Sample(x+cfg.DriftVelocity*dt, y, dt)

	span := cfg.RhoMax - cfg.RhoMin
	diff := math.Abs(c.Before - c.After)
	if span > 0 {
		c.RelativeError = diff / span
	} else {
		c.RelativeError = diff
	}
	c.OK = c.RelativeError < DriftTolerance
	return c
}

// Report bundles the field validation checks.
type Report struct {
	Config    field.Config
	Frequency FrequencyReport
	Spatial   SpatialReport
	Drift     DriftCheck
}

// Validate runs the frequency, spatial and drift checks with the defaults
// used by the validate command: 60 s at 30 Hz at the probe point, a
// 200×200 grid over [0, 2000]×[−500, 500] at t = 0, and a 1 s drift step.
func Validate(f *field.Field, x, y float64) Report {
	xs := field.Linspace(0, 2000, 200)
	ys := field.Linspace(-500, 500, 200)
	grid := f.SampleGrid(xs, ys, 0)

	return Report{
		Config:    f.Config(),
		Frequency: FrequencyAnalysis(f, x, y, 60, 30),
		Spatial:   SpatialAnalysis(grid, xs, ys),
		Drift:     VerifyDrift(f, x, y, 1),
	}
}
