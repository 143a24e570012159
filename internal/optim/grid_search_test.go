package optim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/experiment"
	"github.com/san-kum/synchro/internal/sim"
	"github.com/san-kum/synchro/internal/synchro"
)

func bowl(_ context.Context, p map[string]float64) (float64, error) {
	return (p["kp"]-1)*(p["kp"]-1) + (p["ki"]-0.2)*(p["ki"]-0.2), nil
}

func TestGridSearchFindsMinimum(t *testing.T) {
	g := NewGridSearch([]string{"kp", "ki"}, [][]float64{{0.5, 1, 1.5}, {0.1, 0.2, 0.3, 0.4}})
	if g.Size() != 12 {
		t.Fatalf("size = %d, want 12", g.Size())
	}

	out, err := g.Search(context.Background(), bowl)
	if err != nil {
		t.Fatal(err)
	}
	if out.Best["kp"] != 1 || out.Best["ki"] != 0.2 {
		t.Errorf("best = %v", out.Best)
	}
	if out.Value != 0 {
		t.Errorf("value = %v, want 0", out.Value)
	}
	if len(out.Trials) != 12 {
		t.Errorf("trials = %d, want 12", len(out.Trials))
	}
}

func TestGridSearchSkipsFailedTrials(t *testing.T) {
	g := NewGridSearch([]string{"kp"}, [][]float64{{-1, 2, 3}})
	g.Workers = 1
	out, err := g.Search(context.Background(), func(_ context.Context, p map[string]float64) (float64, error) {
		if p["kp"] < 0 {
			return 0, errors.New("negative")
		}
		return p["kp"], nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Best["kp"] != 2 {
		t.Errorf("best = %v, want kp=2", out.Best)
	}
	if out.Trials[0].Err == nil {
		t.Error("failed trial not recorded")
	}
}

func TestGridSearchAllFail(t *testing.T) {
	g := NewGridSearch([]string{"kp"}, [][]float64{{1, 2}})
	_, err := g.Search(context.Background(), func(context.Context, map[string]float64) (float64, error) {
		return 0, dynamo.ErrUnknownParam
	})
	if !errors.Is(err, dynamo.ErrUnknownParam) {
		t.Errorf("err = %v", err)
	}
}

func TestGridSearchErrors(t *testing.T) {
	if _, err := NewGridSearch([]string{"kp"}, nil).Search(context.Background(), bowl); err == nil {
		t.Error("expected error for mismatched names")
	}
	if _, err := NewGridSearch(nil, nil).Search(context.Background(), bowl); err == nil {
		t.Error("expected error for empty grid")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	_, err := NewGridSearch([]string{"kp"}, [][]float64{{1, 2, 3}}).Search(ctx, func(context.Context, map[string]float64) (float64, error) {
		atomic.AddInt32(&calls, 1)
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("objective called %d times after cancel", calls)
	}
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		in   string
		want []float64
	}{
		{"0.5,1,2", []float64{0.5, 1, 2}},
		{" 3 ", []float64{3}},
		{"0:1:0.25", []float64{0, 0.25, 0.5, 0.75, 1}},
		{"0.1:0.3:0.1", []float64{0.1, 0.2, 0.3}},
	}
	for _, tt := range tests {
		got, err := ParseValues(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("%q[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
			}
		}
	}

	for _, bad := range []string{"", "a,b", "1:0:1", "0:1:0", "0:x:1"} {
		if _, err := ParseValues(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid([]string{"kp=1,2", "ki=0.1:0.2:0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if g.paramNames[0] != "ki" || g.paramNames[1] != "kp" {
		t.Errorf("names = %v, want sorted", g.paramNames)
	}
	if g.Size() != 4 {
		t.Errorf("size = %d", g.Size())
	}
	if _, err := ParseGrid([]string{"kp"}); err == nil {
		t.Error("expected error without '='")
	}
}

func TestEnsembleObjective(t *testing.T) {
	cfg := sim.Config{Dt: 0.01, Duration: 2}
	obj := EnsembleObjective(sim.DefaultSetup(), synchro.Baseline, []int64{1, 2}, cfg, "mean_speed_error_rpm")

	v, err := obj(context.Background(), map[string]float64{"kp": 1.2})
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(v) || v < 0 {
		t.Errorf("objective = %v", v)
	}

	if _, err := obj(context.Background(), map[string]float64{"gain": 1}); !errors.Is(err, dynamo.ErrUnknownParam) {
		t.Errorf("err = %v, want ErrUnknownParam", err)
	}
}

func TestExperimentObjective(t *testing.T) {
	build := func(p map[string]float64) (*experiment.Experiment, error) {
		return experiment.New(experiment.Config{
			Mode:     sim.ModeBaseline,
			Dt:       0.01,
			Duration: 1,
			Params:   p,
		}, sim.DefaultSetup(), nil), nil
	}

	g := NewGridSearch([]string{"kd"}, [][]float64{{0.25, 0.5}})
	out, err := g.Search(context.Background(), ExperimentObjective(build, "mean_speed_error_rpm"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Best == nil {
		t.Fatal("no best params")
	}

	missing := ExperimentObjective(build, "no_such_metric")
	if _, err := missing(context.Background(), nil); err == nil {
		t.Error("expected error for unknown metric")
	}
}
