package sim

import (
	"context"
	"sync"
)

// Ensemble runs the same setup and config across several field seeds in
// parallel, one Twin per seed.
type Ensemble struct {
	setup   Setup
	seeds   []int64
	metrics func() []Metric
}

// NewEnsemble takes a metrics factory so every run gets fresh metric
// instances.
func NewEnsemble(setup Setup, seeds []int64, metrics func() []Metric) *Ensemble {
	return &Ensemble{setup: setup, seeds: seeds, metrics: metrics}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(e.seeds))
	errs := make([]error, len(e.seeds))

	var wg sync.WaitGroup
	for i, seed := range e.seeds {
		wg.Add(1)
		go func(idx int, seed int64) {
			defer wg.Done()

			setup := e.setup
			setup.Field.Seed = seed

			tw, err := New(setup)
			if err != nil {
				errs[idx] = err
				return
			}
			if e.metrics != nil {
				for _, m := range e.metrics() {
					tw.AddMetric(m)
				}
			}
			results[idx], errs[idx] = tw.Run(ctx, cfg)
		}(i, seed)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// MeanMetric averages a named metric over results, skipping nil results.
func MeanMetric(results []*Result, name string) float64 {
	sum, n := 0.0, 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if v, ok := r.Metrics[name]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
