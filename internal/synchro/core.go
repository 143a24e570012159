package synchro

import (
	"math"

	"github.com/san-kum/synchro/internal/dynamo"
)

// core is the PID-on-phase engine shared by every variant.
type core struct {
	g          Gains
	kp, ki, kd float64

	enabled bool
	armed   bool

	integral     float64
	prevError    float64
	prevMeasured float64
	dFiltered    float64
	prevOutput   float64

	updates   int
	sumAbs    float64
	maxAbs    float64
	anomalies int

	tel Telemetry
}

func newCore(g Gains) core {
	return core{g: g, kp: g.Kp, ki: g.Ki, kd: g.Kd}
}

// enable reports whether this call was a Disabled→Enabled transition.
func (c *core) enable() bool {
	if c.enabled {
		return false
	}
	c.enabled = true
	c.armed = true
	c.integral = 0
	c.prevError = 0
	c.prevMeasured = 0
	c.dFiltered = 0
	c.prevOutput = 0
	c.updates = 0
	c.sumAbs = 0
	c.maxAbs = 0
	c.tel = Telemetry{Enabled: true, Kp: c.kp, Ki: c.ki, Kd: c.kd, Anomalies: c.anomalies}
	return true
}

func (c *core) disable() {
	c.enabled = false
	c.prevOutput = 0
	c.tel.Enabled = false
	c.tel.Output = 0
}

func (c *core) accept(m Measurement, dt float64) bool {
	if dt > 0 && dynamo.IsFinite(dt, m.ThetaMain, m.ThetaFollower, m.OmegaMain, m.OmegaFollower) {
		return true
	}
	c.anomalies++
	c.tel.Anomalies = c.anomalies
	return false
}

// pid returns the scaled P+I+D contribution in RPM for the wrapped error e.
func (c *core) pid(e, dt float64) float64 {
	g := &c.g
	abs := math.Abs(e)

	if c.armed {
		c.armed = false
		c.prevMeasured = e
		if abs < g.Deadband {
			c.prevError = 0
		} else {
			c.prevError = e
		}
	}

	c.updates++
	c.sumAbs += abs
	c.maxAbs = math.Max(c.maxAbs, abs)

	var p, d float64
	inDeadband := abs < g.Deadband
	if inDeadband {
		c.integral *= g.IntegratorDecay
		c.dFiltered *= 1 - g.DerivativeAlpha
		c.prevError = 0
	} else {
		p = c.kp * e
		c.integral = dynamo.Clamp(c.integral+e*dt, -g.IntegratorLimit, g.IntegratorLimit)

		var rate float64
		if g.Derivative == DerivativeOnMeasurement {
			rate = dynamo.WrapPhase(e-c.prevMeasured) / dt
		} else {
			rate = dynamo.WrapPhase(e-c.prevError) / dt
		}
		c.dFiltered = g.DerivativeAlpha*rate + (1-g.DerivativeAlpha)*c.dFiltered
		d = c.kd * c.dFiltered
		c.prevError = e
	}
	c.prevMeasured = e
	i := c.ki * c.integral

	c.tel.Error = e
	c.tel.P, c.tel.I, c.tel.D = p, i, d
	c.tel.Integral = c.integral
	c.tel.InDeadband = inDeadband
	c.tel.IntegratorSaturated = math.Abs(c.integral) >= g.IntegratorLimit
	c.tel.Kp, c.tel.Ki, c.tel.Kd = c.kp, c.ki, c.kd

	return (p + i + d) * g.PhaseScale
}

// limit applies the per-tick rate limit then the hard output clip.
func (c *core) limit(raw, dt float64) float64 {
	maxDelta := c.g.RateLimit * dt
	delta := raw - c.prevOutput

	out := c.prevOutput + dynamo.Clamp(delta, -maxDelta, maxDelta)
	clipped := dynamo.Clamp(out, -c.g.OutputLimit, c.g.OutputLimit)

	c.tel.Raw = raw
	c.tel.RateLimited = math.Abs(delta) > maxDelta
	c.tel.OutputSaturated = clipped != out || math.Abs(clipped) >= c.g.OutputLimit
	c.tel.Output = clipped
	c.prevOutput = clipped
	return clipped
}

func (c *core) telemetry() Telemetry {
	t := c.tel
	t.Enabled = c.enabled
	t.Updates = c.updates
	t.MaxAbsError = c.maxAbs
	if c.updates > 0 {
		t.MeanAbsError = c.sumAbs / float64(c.updates)
	}
	t.Anomalies = c.anomalies
	return t
}
