package synchro

import "math"

// AdaptiveController schedules its PID gains on |phase error| and blends the
// live gains toward the scheduled set by TransitionRate every tick.
type AdaptiveController struct {
	core
	schedule string

	window    []float64
	windowPos int
	windowLen int
	windowSum float64
}

func NewAdaptive(g Gains) *AdaptiveController {
	n := g.Window
	if n < 1 {
		n = 1
	}
	a := &AdaptiveController{core: newCore(g), window: make([]float64, n)}
	a.resetGains()
	return a
}

func (a *AdaptiveController) resetGains() {
	a.kp, a.ki, a.kd = a.g.Medium.Kp, a.g.Medium.Ki, a.g.Medium.Kd
	a.schedule = "medium"
	for i := range a.window {
		a.window[i] = 0
	}
	a.windowPos, a.windowLen, a.windowSum = 0, 0, 0
}

func (a *AdaptiveController) Update(m Measurement, dt float64) float64 {
	if !a.enabled {
		return 0
	}
	if !a.accept(m, dt) {
		return a.prevOutput
	}

	e := PhaseError(m.ThetaMain, m.ThetaFollower)
	abs := math.Abs(e)
	a.observe(abs)

	target := a.selectGains(abs)
	r := a.g.TransitionRate
	a.kp += r * (target.Kp - a.kp)
	a.ki += r * (target.Ki - a.ki)
	a.kd += r * (target.Kd - a.kd)

	out := a.limit(a.pid(e, dt), dt)
	a.tel.Schedule = a.schedule
	return out
}

func (a *AdaptiveController) selectGains(abs float64) GainSet {
	switch {
	case abs > a.g.LargeError:
		a.schedule = "large"
		return a.g.Large
	case abs < a.g.SmallError:
		a.schedule = "small"
		return a.g.Small
	default:
		a.schedule = "medium"
		return a.g.Medium
	}
}

func (a *AdaptiveController) observe(abs float64) {
	if a.windowLen == len(a.window) {
		a.windowSum -= a.window[a.windowPos]
	} else {
		a.windowLen++
	}
	a.window[a.windowPos] = abs
	a.windowSum += abs
	a.windowPos = (a.windowPos + 1) % len(a.window)
}

func (a *AdaptiveController) Enable() {
	if a.enable() {
		a.resetGains()
		a.tel.Kp, a.tel.Ki, a.tel.Kd = a.kp, a.ki, a.kd
	}
}

func (a *AdaptiveController) Disable() {
	a.disable()
	a.resetGains()
}

func (a *AdaptiveController) Enabled() bool    { return a.enabled }
func (a *AdaptiveController) Variant() Variant { return Adaptive }
func (a *AdaptiveController) Gains() Gains     { return a.g }

func (a *AdaptiveController) Telemetry() Telemetry {
	t := a.telemetry()
	t.Schedule = a.schedule
	if a.windowLen > 0 {
		t.WindowMeanAbsError = a.windowSum / float64(a.windowLen)
	}
	return t
}
