package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/integrators"
	"github.com/san-kum/synchro/internal/metrics"
	"github.com/san-kum/synchro/internal/sim"
	"github.com/san-kum/synchro/internal/synchro"
)

// Registry resolves controller and integrator names, applying flat
// parameter overrides on top of per-variant base gains.
type Registry struct {
	base map[synchro.Variant]synchro.Gains
}

func NewRegistry() *Registry {
	r := &Registry{base: make(map[synchro.Variant]synchro.Gains)}
	for _, v := range synchro.Variants() {
		r.base[v] = synchro.DefaultGainsFor(v)
	}
	return r
}

// NewRegistryFromSetup uses the gains of an existing setup as the base.
func NewRegistryFromSetup(s sim.Setup) *Registry {
	r := NewRegistry()
	for v, g := range s.Gains {
		r.base[v] = g
	}
	return r
}

// GetGains parses a controller name and overlays params on its base gains.
func (r *Registry) GetGains(name string, params map[string]float64) (synchro.Variant, synchro.Gains, error) {
	v, err := synchro.ParseVariant(name)
	if err != nil {
		return "", synchro.Gains{}, err
	}
	g, err := synchro.GainsFromParams(r.base[v], params)
	if err != nil {
		return "", synchro.Gains{}, fmt.Errorf("controller %s: %w", v, err)
	}
	return v, g, nil
}

func (r *Registry) GetController(name string, params map[string]float64) (synchro.Controller, error) {
	v, g, err := r.GetGains(name, params)
	if err != nil {
		return nil, err
	}
	return synchro.New(v, g)
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	return integrators.New(name)
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.base))
	for v := range r.base {
		names = append(names, string(v))
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListIntegrators() []string {
	return integrators.Names()
}

// Params lists the tunable parameter names of a controller with their
// base values.
func (r *Registry) Params(name string) (map[string]float64, error) {
	v, err := synchro.ParseVariant(name)
	if err != nil {
		return nil, err
	}
	return r.base[v].Params(), nil
}

func (r *Registry) DefaultMetrics() []sim.Metric {
	return metrics.Standard()
}
