package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/synchro/internal/logging"
	"github.com/san-kum/synchro/internal/metrics"
	"github.com/san-kum/synchro/internal/sim"
)

type Verdict string

const (
	HighlyEffective Verdict = "highly effective"
	Effective       Verdict = "effective"
	Marginal        Verdict = "marginal"
	Ineffective     Verdict = "ineffective"
)

// Judge grades a mean speed-error reduction given in percent.
func Judge(improvementPct float64) Verdict {
	switch {
	case improvementPct > 50:
		return HighlyEffective
	case improvementPct > 20:
		return Effective
	case improvementPct > 0:
		return Marginal
	default:
		return Ineffective
	}
}

// PhaseStats summarizes |ΔRPM| and |phase error| over a stretch of samples.
type PhaseStats struct {
	Mode    sim.Mode `json:"mode"`
	Samples int      `json:"samples"`

	MeanSpeedError float64 `json:"mean_speed_error_rpm"`
	MaxSpeedError  float64 `json:"max_speed_error_rpm"`
	StdSpeedError  float64 `json:"std_speed_error_rpm"`
	MeanPhaseError float64 `json:"mean_phase_error_rad"`
	MaxPhaseError  float64 `json:"max_phase_error_rad"`
}

func Summarize(mode sim.Mode, samples []sim.Sample) PhaseStats {
	mean, max, std := metrics.NewMeanSpeedError(), metrics.NewMaxSpeedError(), metrics.NewStdSpeedError()
	pmean, pmax := metrics.NewMeanPhaseError(), metrics.NewMaxPhaseError()
	all := []sim.Metric{mean, max, std, pmean, pmax}
	for _, s := range samples {
		for _, m := range all {
			m.Observe(s)
		}
	}
	return PhaseStats{
		Mode:           mode,
		Samples:        len(samples),
		MeanSpeedError: mean.Value(),
		MaxSpeedError:  max.Value(),
		StdSpeedError:  std.Value(),
		MeanPhaseError: pmean.Value(),
		MaxPhaseError:  pmax.Value(),
	}
}

// Improvement is the percentage reduction from ref to got; 0 when ref is 0.
func Improvement(ref, got float64) float64 {
	if ref <= 0 || math.IsNaN(ref) {
		return 0
	}
	return (ref - got) / ref * 100
}

type Comparison struct {
	Reference PhaseStats `json:"reference"`
	Candidate PhaseStats `json:"candidate"`

	SpeedImprovement float64 `json:"speed_improvement_pct"`
	PhaseImprovement float64 `json:"phase_improvement_pct"`
	Verdict          Verdict `json:"verdict"`
}

func Compare(ref, cand PhaseStats) Comparison {
	c := Comparison{
		Reference:        ref,
		Candidate:        cand,
		SpeedImprovement: Improvement(ref.MeanSpeedError, cand.MeanSpeedError),
		PhaseImprovement: Improvement(ref.MeanPhaseError, cand.MeanPhaseError),
	}
	c.Verdict = Judge(c.SpeedImprovement)
	return c
}

// Tester runs controlled comparisons on fresh twins built from one setup,
// so every run sees the same field.
type Tester struct {
	setup sim.Setup
	dt    float64
	log   *logging.Logger
}

func NewTester(setup sim.Setup, dt float64) *Tester {
	return &Tester{setup: setup, dt: dt, log: setup.Logger}
}

// SwitchTest runs one twin with the controller off for phase seconds, then
// switches to mode for another phase seconds and compares the two halves.
func (t *Tester) SwitchTest(ctx context.Context, mode sim.Mode, phase float64) (*Comparison, error) {
	mode, err := sim.ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if mode == sim.Off {
		return nil, fmt.Errorf("switch test needs a controller mode, got %q", mode)
	}
	tw, err := sim.New(t.setup)
	if err != nil {
		return nil, err
	}
	res, err := tw.Run(ctx, sim.Config{Dt: t.dt, Duration: 2 * phase, Mode: mode, SwitchAt: phase})
	if err != nil {
		return nil, err
	}

	var off, on []sim.Sample
	// sample 0 is the initial state, before any tick
	for _, s := range res.Samples[1:] {
		if s.Mode == sim.Off {
			off = append(off, s)
		} else {
			on = append(on, s)
		}
	}

	c := Compare(Summarize(sim.Off, off), Summarize(res.Mode, on))
	t.log.Info("switch test", "mode", string(res.Mode), "improvement_pct", c.SpeedImprovement, "verdict", string(c.Verdict))
	return &c, nil
}

// SweepReport holds one run per mode; Comparisons are against Off.
type SweepReport struct {
	Duration    float64       `json:"duration"`
	Stats       []PhaseStats  `json:"stats"`
	Comparisons []Comparison  `json:"comparisons"`
	Results     []*sim.Result `json:"-"`
}

// Stat returns the stats recorded for mode.
func (r *SweepReport) Stat(mode sim.Mode) (PhaseStats, bool) {
	for _, s := range r.Stats {
		if s.Mode == mode {
			return s, true
		}
	}
	return PhaseStats{}, false
}

// Sweep runs each mode for duration seconds on its own twin. Off is always
// run first as the reference.
func (t *Tester) Sweep(ctx context.Context, modes []sim.Mode, duration float64) (*SweepReport, error) {
	if len(modes) == 0 {
		modes = sim.Modes()
	}
	order := []sim.Mode{sim.Off}
	for _, m := range modes {
		pm, err := sim.ParseMode(string(m))
		if err != nil {
			return nil, err
		}
		if pm != sim.Off {
			order = append(order, pm)
		}
	}

	rep := &SweepReport{Duration: duration}
	for _, m := range order {
		tw, err := sim.New(t.setup)
		if err != nil {
			return nil, err
		}
		res, err := tw.Run(ctx, sim.Config{Dt: t.dt, Duration: duration, Mode: m})
		if err != nil {
			return rep, err
		}
		rep.Results = append(rep.Results, res)
		rep.Stats = append(rep.Stats, Summarize(m, res.Samples[1:]))
	}

	for _, s := range rep.Stats[1:] {
		c := Compare(rep.Stats[0], s)
		rep.Comparisons = append(rep.Comparisons, c)
		t.log.Info("sweep", "mode", string(s.Mode), "mean_speed_error_rpm", s.MeanSpeedError, "improvement_pct", c.SpeedImprovement)
	}
	return rep, nil
}
