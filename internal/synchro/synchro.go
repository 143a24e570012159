package synchro

import (
	"fmt"
	"strings"

	"github.com/san-kum/synchro/internal/dynamo"
)

// Measurement is one tick of sensor input. Angles are in radians, speeds in
// rad/s. Baseline and adaptive controllers ignore the speeds.
type Measurement struct {
	ThetaMain     float64
	ThetaFollower float64
	OmegaMain     float64
	OmegaFollower float64
}

type Variant string

const (
	Baseline Variant = "baseline"
	PFD      Variant = "pfd"
	Adaptive Variant = "adaptive"
)

func Variants() []Variant {
	return []Variant{Baseline, PFD, Adaptive}
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baseline", "pid":
		return Baseline, nil
	case "pfd", "advanced":
		return PFD, nil
	case "adaptive":
		return Adaptive, nil
	}
	return "", fmt.Errorf("%w: %q", dynamo.ErrUnknownVariant, s)
}

type Controller interface {
	// Update returns the follower RPM correction for this tick. It returns
	// 0 while disabled.
	Update(m Measurement, dt float64) float64
	Enable()
	Disable()
	Enabled() bool
	Telemetry() Telemetry
	Variant() Variant
	Gains() Gains
}

// Telemetry is a copy of the controller's internals after the last tick.
type Telemetry struct {
	Enabled bool

	Error         float64 // wrapped phase error, rad
	P, I, D       float64 // rad-equivalent terms before scaling
	FrequencyTerm float64 // RPM
	Raw           float64 // RPM before rate limit and clip
	Output        float64 // RPM
	Integral      float64 // rad·s

	Kp, Ki, Kd float64
	Schedule   string

	InDeadband          bool
	IntegratorSaturated bool
	OutputSaturated     bool
	RateLimited         bool

	Updates            int
	MeanAbsError       float64
	MaxAbsError        float64
	WindowMeanAbsError float64

	// Anomalies counts ticks rejected for non-finite input or dt <= 0.
	// It survives enable and disable.
	Anomalies int
}

// Saturated reports whether any limiter was active on the last tick.
func (t Telemetry) Saturated() bool {
	return t.IntegratorSaturated || t.OutputSaturated || t.RateLimited
}

func New(v Variant, g Gains) (Controller, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.Derivative == "" {
		g.Derivative = DerivativeOnError
	}
	switch v {
	case Baseline:
		return NewBaseline(g), nil
	case PFD:
		return NewPFD(g), nil
	case Adaptive:
		return NewAdaptive(g), nil
	}
	return nil, fmt.Errorf("%w: %q", dynamo.ErrUnknownVariant, v)
}

// PhaseError is θ_main − θ_follower wrapped to (−π, π].
func PhaseError(thetaMain, thetaFollower float64) float64 {
	return dynamo.WrapPhase(thetaMain - thetaFollower)
}
