package synchro

import (
	"math"
)

// PFDController adds a phase-frequency-detector term to the baseline PID:
// the filtered speed difference ω_main − ω_follower, scaled to RPM.
type PFDController struct {
	core
	freqFiltered float64
}

func NewPFD(g Gains) *PFDController {
	return &PFDController{core: newCore(g)}
}

func (p *PFDController) Update(m Measurement, dt float64) float64 {
	if !p.enabled {
		return 0
	}
	if !p.accept(m, dt) {
		return p.prevOutput
	}

	e := PhaseError(m.ThetaMain, m.ThetaFollower)
	raw := p.pid(e, dt)

	a := p.g.FrequencyAlpha
	p.freqFiltered = a*(m.OmegaMain-m.OmegaFollower) + (1-a)*p.freqFiltered
	freq := p.g.Kf * p.freqFiltered * 60 / (2 * math.Pi)
	p.tel.FrequencyTerm = freq

	return p.limit(raw+freq, dt)
}

func (p *PFDController) Enable() {
	if p.enable() {
		p.freqFiltered = 0
	}
}

func (p *PFDController) Disable()             { p.disable() }
func (p *PFDController) Enabled() bool        { return p.enabled }
func (p *PFDController) Telemetry() Telemetry { return p.telemetry() }
func (p *PFDController) Variant() Variant     { return PFD }
func (p *PFDController) Gains() Gains         { return p.g }

// FrequencyError is the filtered ω_main − ω_follower in rad/s.
func (p *PFDController) FrequencyError() float64 { return p.freqFiltered }
