// Package rotor models a single propeller and its speed governor as a
// one-axis rotational system driven by the local air density.
package rotor

import (
	"math"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/integrators"
)

const (
	DefaultInertia      = 8.0    // kg·m²
	DefaultKAero        = 0.0116 // N·m per (kg/m³ · rad²/s²)
	DefaultGovernorGain = 50.0   // N·m per rad/s
	DefaultBaseTorque   = 900.0  // N·m
	DefaultNominalRPM   = 2400.0
	DefaultBandRPM      = 50.0

	DefaultX       = 900.0
	DefaultMainY   = -60.0
	DefaultFollowY = 60.0
)

type Config struct {
	X            float64 `yaml:"x" mapstructure:"x"`
	Y            float64 `yaml:"y" mapstructure:"y"`
	Inertia      float64 `yaml:"inertia" mapstructure:"inertia"`
	KAero        float64 `yaml:"k_aero" mapstructure:"k_aero"`
	GovernorGain float64 `yaml:"governor_gain" mapstructure:"governor_gain"`
	BaseTorque   float64 `yaml:"base_torque" mapstructure:"base_torque"`
	NominalRPM   float64 `yaml:"nominal_rpm" mapstructure:"nominal_rpm"`
	BandRPM      float64 `yaml:"band_rpm" mapstructure:"band_rpm"`
	InitialPhase float64 `yaml:"initial_phase" mapstructure:"initial_phase"`
	Integrator   string  `yaml:"integrator,omitempty" mapstructure:"integrator"`
}

func DefaultConfig(x, y float64) Config {
	return Config{
		X:            x,
		Y:            y,
		Inertia:      DefaultInertia,
		KAero:        DefaultKAero,
		GovernorGain: DefaultGovernorGain,
		BaseTorque:   DefaultBaseTorque,
		NominalRPM:   DefaultNominalRPM,
		BandRPM:      DefaultBandRPM,
		Integrator:   integrators.Default,
	}
}

func DefaultMain() Config     { return DefaultConfig(DefaultX, DefaultMainY) }
func DefaultFollower() Config { return DefaultConfig(DefaultX, DefaultFollowY) }

func (c Config) Validate() error {
	if !dynamo.IsFinite(c.X, c.Y, c.Inertia, c.KAero, c.GovernorGain, c.BaseTorque, c.NominalRPM, c.BandRPM, c.InitialPhase) {
		return dynamo.NewConfigError("rotor", "config", math.NaN(), "all values must be finite")
	}
	switch {
	case c.Inertia <= 0:
		return dynamo.NewConfigError("rotor", "inertia", c.Inertia, "must be positive")
	case c.KAero < 0:
		return dynamo.NewConfigError("rotor", "k_aero", c.KAero, "must not be negative")
	case c.GovernorGain < 0:
		return dynamo.NewConfigError("rotor", "governor_gain", c.GovernorGain, "must not be negative")
	case c.BaseTorque < 0:
		return dynamo.NewConfigError("rotor", "base_torque", c.BaseTorque, "must not be negative")
	case c.NominalRPM <= 0:
		return dynamo.NewConfigError("rotor", "nominal_rpm", c.NominalRPM, "must be positive")
	case c.BandRPM < 0 || c.BandRPM >= c.NominalRPM:
		return dynamo.NewConfigError("rotor", "band_rpm", c.BandRPM, "must lie in [0, nominal_rpm)")
	}
	return nil
}

// Snapshot is the rotor state plus the torque breakdown of the last step.
type Snapshot struct {
	X, Y         float64
	Omega        float64
	RPM          float64
	Theta        float64
	TargetRPM    float64
	Density      float64
	AeroTorque   float64
	EngineTorque float64
	NetTorque    float64
	Accel        float64
}

// Rotor is not safe for concurrent use.
type Rotor struct {
	cfg   Config
	integ dynamo.Integrator

	omega  float64
	theta  float64
	target float64
	rho    float64

	minTarget, maxTarget float64

	// per-step inputs held constant across integrator stages
	stepRho  float64
	qAero    float64
	qEngine  float64
	alpha    float64
	stateBuf dynamo.State

	steps    int
	rejected int
	lastErr  error
}

// New builds a rotor spinning at its nominal speed with the target at
// nominal and the local density at sea level until Prime or the first Step.
func New(cfg Config) (*Rotor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	nominal := dynamo.RPMToRadS(cfg.NominalRPM)
	r := &Rotor{
		cfg:       cfg,
		integ:     integ,
		omega:     nominal,
		theta:     dynamo.WrapAngle(cfg.InitialPhase),
		target:    nominal,
		rho:       field.RhoSeaLevel,
		minTarget: dynamo.RPMToRadS(cfg.NominalRPM - cfg.BandRPM),
		maxTarget: dynamo.RPMToRadS(cfg.NominalRPM + cfg.BandRPM),
		stateBuf:  make(dynamo.State, 2),
	}
	r.qEngine = cfg.BaseTorque
	r.stepRho = r.rho
	return r, nil
}

// Prime sets the local density to the middle of src's band, the value held
// before the first step and used if the first sample is not finite.
func (r *Rotor) Prime(src dynamo.DensitySource) {
	lo, hi := src.Bounds()
	if lo > hi || !dynamo.IsFinite(lo, hi) {
		return
	}
	r.rho = (lo + hi) / 2
	r.stepRho = r.rho
}

// Step advances the rotor by dt seconds at simulation time t. The density
// is sampled once at the rotor position and held for the whole step.
// Non-positive or non-finite dt leaves the rotor unchanged. A non-finite
// integrator result is dropped and recorded; see Rejected and Err.
func (r *Rotor) Step(dt, t float64, src dynamo.DensitySource) {
	if !(dt > 0) || !dynamo.IsFinite(dt, t) {
		return
	}
	r.steps++

	rho := src.Sample(r.cfg.X, r.cfg.Y, t)
	if !dynamo.IsFinite(rho) {
		rho = r.rho
	}
	lo, hi := src.Bounds()
	if lo <= hi {
		rho = dynamo.Clamp(rho, lo, hi)
	}
	r.rho = rho
	r.stepRho = rho

	r.qAero = r.aeroTorque(r.omega)
	r.qEngine = r.engineTorque(r.omega)
	r.alpha = (r.qEngine - r.qAero) / r.cfg.Inertia

	r.stateBuf[0], r.stateBuf[1] = r.theta, r.omega
	next := r.integ.Step(r, r.stateBuf, nil, t, dt)
	if !next.IsValid() {
		r.rejected++
		r.lastErr = &dynamo.SimulationError{Step: r.steps, Time: t, State: next.Clone(), Wrapped: dynamo.ErrInvalidState}
		return
	}

	r.omega = math.Max(0, next[1])
	r.theta = dynamo.WrapAngle(next[0])
}

func (r *Rotor) aeroTorque(omega float64) float64 {
	w := math.Max(omega, 0)
	return r.cfg.KAero * r.stepRho * w * w
}

func (r *Rotor) engineTorque(omega float64) float64 {
	return math.Max(0, r.cfg.BaseTorque+r.cfg.GovernorGain*(r.target-omega))
}

// Derive implements dynamo.System over the state [θ, ω].
func (r *Rotor) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	omega := x[1]
	alpha := (r.engineTorque(omega) - r.aeroTorque(omega)) / r.cfg.Inertia
	return dynamo.State{omega, alpha}
}

func (r *Rotor) StateDim() int   { return 2 }
func (r *Rotor) ControlDim() int { return 0 }

// SetTargetSpeed sets the governor target in rad/s, clamped to the safety
// band around nominal. Non-finite values are ignored.
func (r *Rotor) SetTargetSpeed(omega float64) {
	if !dynamo.IsFinite(omega) {
		return
	}
	r.target = dynamo.Clamp(omega, r.minTarget, r.maxTarget)
}

func (r *Rotor) SetTargetRPM(rpm float64) {
	r.SetTargetSpeed(dynamo.RPMToRadS(rpm))
}

func (r *Rotor) AngularVelocity() float64 { return r.omega }
func (r *Rotor) RPM() float64             { return dynamo.RadSToRPM(r.omega) }
func (r *Rotor) BladeAngle() float64      { return r.theta }
func (r *Rotor) LocalDensity() float64    { return r.rho }
func (r *Rotor) TargetSpeed() float64     { return r.target }
func (r *Rotor) TargetRPM() float64       { return dynamo.RadSToRPM(r.target) }
func (r *Rotor) NominalRPM() float64      { return r.cfg.NominalRPM }
func (r *Rotor) Config() Config           { return r.cfg }

// Rejected counts steps whose integrator result was not finite.
func (r *Rotor) Rejected() int { return r.rejected }

// Err returns the last rejected step as a *dynamo.SimulationError wrapping
// dynamo.ErrInvalidState, or nil.
func (r *Rotor) Err() error { return r.lastErr }

func (r *Rotor) Position() (x, y float64) {
	return r.cfg.X, r.cfg.Y
}

// TargetBandRPM returns the closed interval the governor target is kept in.
func (r *Rotor) TargetBandRPM() (min, max float64) {
	return r.cfg.NominalRPM - r.cfg.BandRPM, r.cfg.NominalRPM + r.cfg.BandRPM
}

func (r *Rotor) Snapshot() Snapshot {
	return Snapshot{
		X:            r.cfg.X,
		Y:            r.cfg.Y,
		Omega:        r.omega,
		RPM:          r.RPM(),
		Theta:        r.theta,
		TargetRPM:    r.TargetRPM(),
		Density:      r.rho,
		AeroTorque:   r.qAero,
		EngineTorque: r.qEngine,
		NetTorque:    r.qEngine - r.qAero,
		Accel:        r.alpha,
	}
}

// EquilibriumSpeed solves k·ρ·ω² = Q_base + K_p·(ω_target − ω) for ω ≥ 0.
func (r *Rotor) EquilibriumSpeed(rho float64) float64 {
	return EquilibriumSpeed(r.cfg, rho, r.target)
}

func EquilibriumSpeed(cfg Config, rho, target float64) float64 {
	a := cfg.KAero * rho
	b := cfg.GovernorGain
	c := -(cfg.BaseTorque + cfg.GovernorGain*target)
	if a == 0 {
		if b == 0 {
			return math.Inf(1)
		}
		return -c / b
	}
	return (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
}
