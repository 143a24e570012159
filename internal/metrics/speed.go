package metrics

import (
	"math"

	"github.com/san-kum/synchro/internal/sim"
)

// SpeedError tracks |RPM_main − RPM_follower| and reports one statistic.
type SpeedError struct {
	name string
	stat Stat
	acc  accumulator
}

type Stat int

const (
	Mean Stat = iota
	Max
	Std
)

func NewMeanSpeedError() *SpeedError { return &SpeedError{name: "mean_speed_error_rpm", stat: Mean} }
func NewMaxSpeedError() *SpeedError  { return &SpeedError{name: "max_speed_error_rpm", stat: Max} }
func NewStdSpeedError() *SpeedError  { return &SpeedError{name: "std_speed_error_rpm", stat: Std} }

func (s *SpeedError) Name() string { return s.name }

func (s *SpeedError) Observe(x sim.Sample) {
	s.acc.add(math.Abs(x.SpeedErrorRPM))
}

func (s *SpeedError) Value() float64 { return s.acc.value(s.stat) }
func (s *SpeedError) Reset()         { s.acc = accumulator{} }

// PhaseError tracks |wrapped phase error| in radians.
type PhaseError struct {
	name string
	stat Stat
	acc  accumulator
}

func NewMeanPhaseError() *PhaseError { return &PhaseError{name: "mean_phase_error_rad", stat: Mean} }
func NewMaxPhaseError() *PhaseError  { return &PhaseError{name: "max_phase_error_rad", stat: Max} }

func (p *PhaseError) Name() string { return p.name }

func (p *PhaseError) Observe(x sim.Sample) {
	p.acc.add(math.Abs(x.PhaseError))
}

func (p *PhaseError) Value() float64 { return p.acc.value(p.stat) }
func (p *PhaseError) Reset()         { p.acc = accumulator{} }

// accumulator keeps count, mean, M2 (Welford) and max.
type accumulator struct {
	n    int
	mean float64
	m2   float64
	max  float64
}

func (a *accumulator) add(v float64) {
	a.n++
	d := v - a.mean
	a.mean += d / float64(a.n)
	a.m2 += d * (v - a.mean)
	if a.n == 1 || v > a.max {
		a.max = v
	}
}

func (a *accumulator) value(s Stat) float64 {
	if a.n == 0 {
		return 0
	}
	switch s {
	case Max:
		return a.max
	case Std:
		return math.Sqrt(a.m2 / float64(a.n))
	default:
		return a.mean
	}
}
