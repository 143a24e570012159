package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/san-kum/synchro/internal/experiment"
	"github.com/san-kum/synchro/internal/metrics"
	"github.com/san-kum/synchro/internal/sim"
	"github.com/san-kum/synchro/internal/synchro"
)

// Objective scores one parameter combination; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type Outcome struct {
	Best   map[string]float64
	Value  float64
	Trials []Trial
}

// GridSearch evaluates the cartesian product of parameter ranges.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Workers bounds concurrent evaluations; 0 uses GOMAXPROCS.
	Workers int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Size is the number of combinations in the grid.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search scores every combination and returns the lowest. Failed trials
// are recorded and skipped; an error is returned only when no trial
// succeeded or ctx was cancelled.
func (g *GridSearch) Search(ctx context.Context, obj Objective) (*Outcome, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, fmt.Errorf("optim: %d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}

	if len(g.paramNames) == 0 {
		return nil, errors.New("optim: empty grid")
	}

	var combos []map[string]float64
	g.enumerate(0, make(map[string]float64), &combos)
	if len(combos) == 0 {
		return nil, errors.New("optim: empty grid")
	}

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trials := make([]Trial, len(combos))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, params := range combos {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, params map[string]float64) {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := obj(ctx, params)
			trials[idx] = Trial{Params: params, Value: v, Err: err}
		}(i, params)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{Value: math.Inf(1), Trials: trials}
	var lastErr error
	for _, t := range trials {
		if t.Err != nil {
			lastErr = t.Err
			continue
		}
		if t.Value < out.Value {
			out.Value = t.Value
			out.Best = t.Params
		}
	}
	if out.Best == nil {
		return out, fmt.Errorf("optim: no trial succeeded: %w", lastErr)
	}
	return out, nil
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val
		g.enumerate(depth+1, newParams, out)
	}
}

// ExperimentObjective builds and runs one experiment per trial and reads
// metric from its result.
func ExperimentObjective(build func(params map[string]float64) (*experiment.Experiment, error), metric string) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		exp, err := build(params)
		if err != nil {
			return 0, err
		}
		if err := exp.Setup(); err != nil {
			return 0, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return 0, err
		}
		v, ok := res.Metrics[metric]
		if !ok {
			return 0, fmt.Errorf("optim: metric %q not recorded", metric)
		}
		return v, nil
	}
}

// EnsembleObjective overlays params on the gains of variant v and averages
// metric over one run per seed.
func EnsembleObjective(setup sim.Setup, v synchro.Variant, seeds []int64, cfg sim.Config, metric string) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		base, ok := setup.Gains[v]
		if !ok {
			base = synchro.DefaultGainsFor(v)
		}
		g, err := synchro.GainsFromParams(base, params)
		if err != nil {
			return 0, err
		}

		s := setup
		s.Gains = map[synchro.Variant]synchro.Gains{v: g}
		c := cfg
		c.Mode = sim.Mode(v)
		c.RecordEvery = math.MaxInt32

		results, err := sim.NewEnsemble(s, seeds, metrics.Standard).Run(ctx, c)
		if err != nil {
			return 0, err
		}
		return sim.MeanMetric(results, metric), nil
	}
}

// ParseValues reads either a comma list ("0.5,1,2") or an inclusive
// range "start:stop:step".
func ParseValues(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		var lim [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("optim: bad range %q: %w", s, err)
			}
			lim[i] = v
		}
		start, stop, step := lim[0], lim[1], lim[2]
		if step <= 0 || stop < start {
			return nil, fmt.Errorf("optim: bad range %q", s)
		}
		n := int(math.Floor((stop-start)/step+1e-9)) + 1
		out := make([]float64, n)
		for i := range out {
			out[i] = start + float64(i)*step
		}
		return out, nil
	}

	var out []float64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("optim: bad value %q: %w", p, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("optim: no values in %q", s)
	}
	return out, nil
}

// ParseGrid turns "kp=0.5:1.5:0.5" style specs into a GridSearch with
// parameters in name order.
func ParseGrid(specs []string) (*GridSearch, error) {
	byName := make(map[string][]float64, len(specs))
	for _, spec := range specs {
		name, values, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("optim: expected name=values, got %q", spec)
		}
		vals, err := ParseValues(values)
		if err != nil {
			return nil, err
		}
		byName[strings.TrimSpace(name)] = vals
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	ranges := make([][]float64, len(names))
	for i, n := range names {
		ranges[i] = byName[n]
	}
	return NewGridSearch(names, ranges), nil
}
