package synchro

import (
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"

	"github.com/san-kum/synchro/internal/dynamo"
)

// DerivativeSource selects the signal the D term differentiates.
type DerivativeSource string

const (
	// DerivativeOnError differentiates the deadbanded phase error.
	DerivativeOnError DerivativeSource = "error"
	// DerivativeOnMeasurement differentiates the raw measured phase
	// difference, so entering or leaving the deadband causes no kick.
	DerivativeOnMeasurement DerivativeSource = "measurement"
)

type GainSet struct {
	Kp float64 `yaml:"kp" mapstructure:"kp"`
	Ki float64 `yaml:"ki" mapstructure:"ki"`
	Kd float64 `yaml:"kd" mapstructure:"kd"`
}

// Gains holds every tunable of every variant. Fields a variant does not
// use are ignored by it.
type Gains struct {
	Kp float64 `yaml:"kp" mapstructure:"kp"`
	Ki float64 `yaml:"ki" mapstructure:"ki"`
	Kd float64 `yaml:"kd" mapstructure:"kd"`

	PhaseScale      float64          `yaml:"phase_scale" mapstructure:"phase_scale"`           // RPM per rad
	DerivativeAlpha float64          `yaml:"derivative_alpha" mapstructure:"derivative_alpha"` // EMA weight of the newest sample
	Deadband        float64          `yaml:"deadband" mapstructure:"deadband"`                 // rad
	RateLimit       float64          `yaml:"rate_limit" mapstructure:"rate_limit"`             // RPM/s
	IntegratorLimit float64          `yaml:"integrator_limit" mapstructure:"integrator_limit"` // rad·s
	IntegratorDecay float64          `yaml:"integrator_decay" mapstructure:"integrator_decay"` // per tick inside the deadband
	OutputLimit     float64          `yaml:"output_limit" mapstructure:"output_limit"`         // RPM
	Derivative      DerivativeSource `yaml:"derivative" mapstructure:"-"`

	// PFD
	Kf             float64 `yaml:"kf" mapstructure:"kf"`
	FrequencyAlpha float64 `yaml:"frequency_alpha" mapstructure:"frequency_alpha"`

	// Adaptive
	LargeError     float64 `yaml:"large_error" mapstructure:"large_error"` // rad
	SmallError     float64 `yaml:"small_error" mapstructure:"small_error"` // rad
	TransitionRate float64 `yaml:"transition_rate" mapstructure:"transition_rate"`
	Window         int     `yaml:"window" mapstructure:"window"`
	Large          GainSet `yaml:"large" mapstructure:"-"`
	Medium         GainSet `yaml:"medium" mapstructure:"-"`
	Small          GainSet `yaml:"small" mapstructure:"-"`
}

func DefaultGains() Gains {
	return Gains{
		Kp:              1.0,
		Ki:              0.1,
		Kd:              0.5,
		PhaseScale:      30.0,
		DerivativeAlpha: 0.3,
		Deadband:        0.01,
		RateLimit:       20.0,
		IntegratorLimit: 0.5,
		IntegratorDecay: 0.99,
		OutputLimit:     15.0,
		Derivative:      DerivativeOnError,

		Kf:             0.5,
		FrequencyAlpha: 0.1,

		LargeError:     0.05,
		SmallError:     0.02,
		TransitionRate: 0.1,
		Window:         100,
		Large:          GainSet{Kp: 1.5, Ki: 0.15, Kd: 0.7},
		Medium:         GainSet{Kp: 1.2, Ki: 0.12, Kd: 0.6},
		Small:          GainSet{Kp: 0.9, Ki: 0.08, Kd: 0.4},
	}
}

// DefaultGainsFor returns the defaults with the live gains a variant starts
// from. The adaptive variant starts from its medium set.
func DefaultGainsFor(v Variant) Gains {
	g := DefaultGains()
	if v == Adaptive {
		g.Kp, g.Ki, g.Kd = g.Medium.Kp, g.Medium.Ki, g.Medium.Kd
	}
	return g
}

func (g Gains) Validate() error {
	if !dynamo.IsFinite(g.Kp, g.Ki, g.Kd, g.PhaseScale, g.DerivativeAlpha, g.Deadband, g.RateLimit,
		g.IntegratorLimit, g.IntegratorDecay, g.OutputLimit, g.Kf, g.FrequencyAlpha,
		g.LargeError, g.SmallError, g.TransitionRate) {
		return dynamo.NewConfigError("synchro", "gains", math.NaN(), "all values must be finite")
	}

	nonNeg := []struct {
		name  string
		value float64
	}{
		{"kp", g.Kp}, {"ki", g.Ki}, {"kd", g.Kd}, {"kf", g.Kf}, {"deadband", g.Deadband},
		{"large.kp", g.Large.Kp}, {"large.ki", g.Large.Ki}, {"large.kd", g.Large.Kd},
		{"medium.kp", g.Medium.Kp}, {"medium.ki", g.Medium.Ki}, {"medium.kd", g.Medium.Kd},
		{"small.kp", g.Small.Kp}, {"small.ki", g.Small.Ki}, {"small.kd", g.Small.Kd},
	}
	for _, p := range nonNeg {
		if p.value < 0 {
			return dynamo.NewConfigError("synchro", p.name, p.value, "must not be negative")
		}
	}

	positive := []struct {
		name  string
		value float64
	}{
		{"phase_scale", g.PhaseScale}, {"rate_limit", g.RateLimit},
		{"integrator_limit", g.IntegratorLimit}, {"output_limit", g.OutputLimit},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return dynamo.NewConfigError("synchro", p.name, p.value, "must be positive")
		}
	}

	unit := []struct {
		name  string
		value float64
	}{
		{"derivative_alpha", g.DerivativeAlpha}, {"frequency_alpha", g.FrequencyAlpha},
		{"transition_rate", g.TransitionRate},
	}
	for _, p := range unit {
		if p.value <= 0 || p.value > 1 {
			return dynamo.NewConfigError("synchro", p.name, p.value, "must lie in (0, 1]")
		}
	}

	if g.IntegratorDecay < 0 || g.IntegratorDecay > 1 {
		return dynamo.NewConfigError("synchro", "integrator_decay", g.IntegratorDecay, "must lie in [0, 1]")
	}
	if g.SmallError < 0 || g.LargeError < g.SmallError {
		return dynamo.NewConfigError("synchro", "large_error", g.LargeError, "need 0 <= small_error <= large_error")
	}
	if g.Window < 1 {
		return dynamo.NewConfigError("synchro", "window", float64(g.Window), "must be at least 1")
	}
	switch g.Derivative {
	case DerivativeOnError, DerivativeOnMeasurement, "":
	default:
		return fmt.Errorf("%w: synchro: unknown derivative source %q", dynamo.ErrInvalidConfig, g.Derivative)
	}
	return nil
}

// GainsFromParams overlays a flat parameter bag (as produced by grid search
// or experiment overrides) onto base. Unknown names are rejected.
func GainsFromParams(base Gains, params map[string]float64) (Gains, error) {
	g := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &g,
		ErrorUnused: true,
	})
	if err != nil {
		return base, err
	}
	if err := decoder.Decode(params); err != nil {
		return base, fmt.Errorf("%w: %v", dynamo.ErrUnknownParam, err)
	}
	if err := g.Validate(); err != nil {
		return base, err
	}
	return g, nil
}

// Params flattens the scalar tunables into a parameter bag.
func (g Gains) Params() map[string]float64 {
	var out map[string]interface{}
	if err := mapstructure.Decode(g, &out); err != nil {
		return nil
	}
	params := make(map[string]float64, len(out))
	for k, v := range out {
		switch x := v.(type) {
		case float64:
			params[k] = x
		case int:
			params[k] = float64(x)
		}
	}
	return params
}
