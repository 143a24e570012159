package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/synchro/internal/sim"
	"github.com/san-kum/synchro/internal/synchro"
)

// Config describes one run on top of a base setup.
type Config struct {
	Mode       sim.Mode
	Integrator string // overrides both rotors when set
	Dt         float64
	Duration   float64
	SwitchAt   float64
	Seed       int64 // overrides the field seed when non-zero
	// Params overlay the gains of Mode's controller.
	Params      map[string]float64
	RecordEvery int
}

type Experiment struct {
	cfg      Config
	base     sim.Setup
	registry *Registry
	twin     *sim.Twin
}

func New(cfg Config, base sim.Setup, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistryFromSetup(base)
	}
	return &Experiment{cfg: cfg, base: base, registry: registry}
}

// Setup builds the twin with overrides applied and the registry's default
// metrics attached.
func (e *Experiment) Setup() error {
	s := e.base
	if e.cfg.Seed != 0 {
		s.Field.Seed = e.cfg.Seed
	}
	if e.cfg.Integrator != "" {
		if _, err := e.registry.GetIntegrator(e.cfg.Integrator); err != nil {
			return err
		}
		s.Main.Integrator = e.cfg.Integrator
		s.Follower.Integrator = e.cfg.Integrator
	}

	gains := make(map[synchro.Variant]synchro.Gains, len(s.Gains)+1)
	for v, g := range s.Gains {
		gains[v] = g
	}
	if v, ok := e.cfg.Mode.Variant(); ok && len(e.cfg.Params) > 0 {
		_, g, err := e.registry.GetGains(string(v), e.cfg.Params)
		if err != nil {
			return err
		}
		gains[v] = g
	}
	s.Gains = gains

	tw, err := sim.New(s)
	if err != nil {
		return err
	}
	for _, m := range e.registry.DefaultMetrics() {
		tw.AddMetric(m)
	}
	e.twin = tw
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.twin == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.twin.Run(ctx, sim.Config{
		Dt:          e.cfg.Dt,
		Duration:    e.cfg.Duration,
		Mode:        e.cfg.Mode,
		SwitchAt:    e.cfg.SwitchAt,
		RecordEvery: e.cfg.RecordEvery,
	})
}

// Twin returns the underlying twin for adding observers.
func (e *Experiment) Twin() *sim.Twin {
	return e.twin
}
