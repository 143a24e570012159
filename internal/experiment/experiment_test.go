package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/sim"
	"github.com/san-kum/synchro/internal/synchro"
)

func defaultSetup() sim.Setup {
	s := sim.DefaultSetup()
	s.Field.Seed = field.DefaultSeed
	return s
}

func TestJudge(t *testing.T) {
	tests := []struct {
		pct  float64
		want Verdict
	}{
		{75, HighlyEffective},
		{50, Effective},
		{21, Effective},
		{20, Marginal},
		{0.1, Marginal},
		{0, Ineffective},
		{-30, Ineffective},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Judge(tt.pct), "pct=%v", tt.pct)
	}
}

func TestImprovement(t *testing.T) {
	assert.InDelta(t, 60, Improvement(10, 4), 1e-12)
	assert.InDelta(t, -50, Improvement(10, 15), 1e-12)
	assert.Zero(t, Improvement(0, 3))
}

func TestSummarize(t *testing.T) {
	samples := []sim.Sample{
		{SpeedErrorRPM: -2, PhaseError: 0.1},
		{SpeedErrorRPM: 4, PhaseError: -0.3},
	}
	s := Summarize(sim.ModePFD, samples)
	assert.Equal(t, sim.ModePFD, s.Mode)
	assert.Equal(t, 2, s.Samples)
	assert.InDelta(t, 3, s.MeanSpeedError, 1e-12)
	assert.InDelta(t, 4, s.MaxSpeedError, 1e-12)
	assert.InDelta(t, 1, s.StdSpeedError, 1e-12)
	assert.InDelta(t, 0.2, s.MeanPhaseError, 1e-12)
	assert.InDelta(t, 0.3, s.MaxPhaseError, 1e-12)

	empty := Summarize(sim.Off, nil)
	assert.Zero(t, empty.MeanSpeedError)
}

func TestCompare(t *testing.T) {
	c := Compare(
		PhaseStats{MeanSpeedError: 10, MeanPhaseError: 1},
		PhaseStats{MeanSpeedError: 3, MeanPhaseError: 0.9},
	)
	assert.InDelta(t, 70, c.SpeedImprovement, 1e-9)
	assert.InDelta(t, 10, c.PhaseImprovement, 1e-9)
	assert.Equal(t, HighlyEffective, c.Verdict)
}

func TestSwitchTest(t *testing.T) {
	tester := NewTester(defaultSetup(), 0.01)
	c, err := tester.SwitchTest(context.Background(), sim.ModeBaseline, 5)
	require.NoError(t, err)

	assert.Equal(t, sim.Off, c.Reference.Mode)
	assert.Equal(t, sim.ModeBaseline, c.Candidate.Mode)
	assert.InDelta(t, 500, c.Reference.Samples, 1)
	assert.InDelta(t, 500, c.Candidate.Samples, 1)
	assert.Equal(t, 1000, c.Reference.Samples+c.Candidate.Samples)
	assert.Greater(t, c.Reference.MeanSpeedError, 0.0)
	assert.Equal(t, Judge(c.SpeedImprovement), c.Verdict)

	_, err = tester.SwitchTest(context.Background(), sim.Off, 5)
	assert.Error(t, err)
	_, err = tester.SwitchTest(context.Background(), "bogus", 5)
	assert.True(t, errors.Is(err, dynamo.ErrUnknownVariant))
}

func TestSweepBaselineIsEffective(t *testing.T) {
	tester := NewTester(defaultSetup(), 0.01)
	rep, err := tester.Sweep(context.Background(), []sim.Mode{sim.ModeBaseline}, 30)
	require.NoError(t, err)

	require.Len(t, rep.Stats, 2)
	require.Len(t, rep.Comparisons, 1)
	assert.Equal(t, sim.Off, rep.Stats[0].Mode)

	c := rep.Comparisons[0]
	assert.GreaterOrEqual(t, c.SpeedImprovement, 40.0)
	assert.Contains(t, []Verdict{Effective, HighlyEffective}, c.Verdict)

	off, ok := rep.Stat(sim.Off)
	require.True(t, ok)
	assert.Equal(t, 3000, off.Samples)
	_, ok = rep.Stat(sim.ModePFD)
	assert.False(t, ok)
}

func TestSweepRejectsUnknownMode(t *testing.T) {
	_, err := NewTester(defaultSetup(), 0.01).Sweep(context.Background(), []sim.Mode{"warp"}, 1)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"adaptive", "baseline", "pfd"}, r.ListControllers())
	assert.Contains(t, r.ListIntegrators(), "rk4")

	v, g, err := r.GetGains("pid", map[string]float64{"kp": 2.5})
	require.NoError(t, err)
	assert.Equal(t, synchro.Baseline, v)
	assert.Equal(t, 2.5, g.Kp)
	assert.Equal(t, synchro.DefaultGains().Ki, g.Ki)

	_, _, err = r.GetGains("baseline", map[string]float64{"warp": 1})
	assert.True(t, errors.Is(err, dynamo.ErrUnknownParam))

	c, err := r.GetController("advanced", nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	params, err := r.Params("pfd")
	require.NoError(t, err)
	assert.Contains(t, params, "kf")

	_, err = r.GetIntegrator("leapfrog")
	assert.True(t, errors.Is(err, dynamo.ErrInvalidConfig))
	assert.NotEmpty(t, r.DefaultMetrics())
}

func TestExperimentRun(t *testing.T) {
	e := New(Config{
		Mode:       sim.ModePFD,
		Integrator: "rk4",
		Dt:         0.01,
		Duration:   2,
		Seed:       11,
		Params:     map[string]float64{"kf": 0.8},
	}, defaultSetup(), nil)

	_, err := e.Run(context.Background())
	assert.Error(t, err, "run before setup")

	require.NoError(t, e.Setup())
	require.NotNil(t, e.Twin())
	assert.Equal(t, int64(11), e.Twin().Field().Config().Seed)
	assert.Equal(t, "rk4", e.Twin().Follower().Config().Integrator)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, res.StepsTaken)
	assert.Contains(t, res.Metrics, "mean_speed_error_rpm")
}

func TestExperimentRejectsBadOverrides(t *testing.T) {
	bad := New(Config{Mode: sim.ModeBaseline, Params: map[string]float64{"kp": -1}}, defaultSetup(), nil)
	assert.Error(t, bad.Setup())

	integ := New(Config{Mode: sim.ModeBaseline, Integrator: "verlet"}, defaultSetup(), nil)
	assert.Error(t, integ.Setup())
}
