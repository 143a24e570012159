// Package field implements the procedural atmospheric density field that
// drives both rotors.
//
// The field is fractal Brownian motion over 2-D gradient noise, translated
// horizontally at a constant drift velocity (frozen turbulence), so that
//
//	Sample(x, y, t) == Sample(x + V*dt, y, t + dt)
//
// up to floating point rounding. A Field is immutable once constructed and
// safe for concurrent use.
package field

import (
	"math"

	"github.com/san-kum/synchro/internal/dynamo"
)

const (
	DefaultWavelength    = 150.0 // m
	DefaultRhoMin        = 1.08  // kg/m³
	DefaultRhoMax        = 1.37  // kg/m³
	DefaultDriftVelocity = 50.0  // m/s
	DefaultOctaves       = 4
	DefaultPersistence   = 0.5
	DefaultLacunarity    = 2.0
	DefaultSeed          = 42

	RhoSeaLevel = 1.225
)

type Config struct {
	Wavelength    float64 `yaml:"wavelength" mapstructure:"wavelength"`
	RhoMin        float64 `yaml:"rho_min" mapstructure:"rho_min"`
	RhoMax        float64 `yaml:"rho_max" mapstructure:"rho_max"`
	DriftVelocity float64 `yaml:"drift_velocity" mapstructure:"drift_velocity"`
	Octaves       int     `yaml:"octaves" mapstructure:"octaves"`
	Persistence   float64 `yaml:"persistence" mapstructure:"persistence"`
	Lacunarity    float64 `yaml:"lacunarity" mapstructure:"lacunarity"`
	Seed          int64   `yaml:"seed" mapstructure:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Wavelength:    DefaultWavelength,
		RhoMin:        DefaultRhoMin,
		RhoMax:        DefaultRhoMax,
		DriftVelocity: DefaultDriftVelocity,
		Octaves:       DefaultOctaves,
		Persistence:   DefaultPersistence,
		Lacunarity:    DefaultLacunarity,
		Seed:          DefaultSeed,
	}
}

// Validate returns a *dynamo.ConfigError describing the first invalid value.
func (c Config) Validate() error {
	if !dynamo.IsFinite(c.Wavelength, c.RhoMin, c.RhoMax, c.DriftVelocity, c.Persistence, c.Lacunarity) {
		return dynamo.NewConfigError("field", "config", math.NaN(), "all values must be finite")
	}
	if c.Wavelength <= 0 {
		return dynamo.NewConfigError("field", "wavelength", c.Wavelength, "must be positive")
	}
	if c.RhoMax < c.RhoMin {
		return dynamo.NewConfigError("field", "rho_max", c.RhoMax, "must not be below rho_min")
	}
	if c.Octaves < 1 {
		return dynamo.NewConfigError("field", "octaves", float64(c.Octaves), "need at least one octave")
	}
	if c.Persistence <= 0 {
		return dynamo.NewConfigError("field", "persistence", c.Persistence, "must be positive")
	}
	if c.Lacunarity <= 0 {
		return dynamo.NewConfigError("field", "lacunarity", c.Lacunarity, "must be positive")
	}
	return nil
}

type Field struct {
	cfg      Config
	noise    *perlin
	baseFreq float64
	ampSum   float64
}

func New(cfg Config) (*Field, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ampSum, amp := 0.0, 1.0
	for i := 0; i < cfg.Octaves; i++ {
		ampSum += amp
		amp *= cfg.Persistence
	}

	return &Field{
		cfg:      cfg,
		noise:    newPerlin(cfg.Seed),
		baseFreq: 1.0 / cfg.Wavelength,
		ampSum:   ampSum,
	}, nil
}

func (f *Field) Config() Config         { return f.cfg }
func (f *Field) BaseFrequency() float64 { return f.baseFreq }

func (f *Field) Bounds() (min, max float64) {
	return f.cfg.RhoMin, f.cfg.RhoMax
}

// Sample returns the air density at (x, y) metres at time t seconds.
// The result always lies in [RhoMin, RhoMax].
func (f *Field) Sample(x, y, t float64) float64 {
	if !dynamo.IsFinite(x, y, t) {
		return 0.5 * (f.cfg.RhoMin + f.cfg.RhoMax)
	}

	xd := x - f.cfg.DriftVelocity*t
	n := f.fbm(xd, y)

	rho := f.cfg.RhoMin + n*(f.cfg.RhoMax-f.cfg.RhoMin)
	return dynamo.Clamp(rho, f.cfg.RhoMin, f.cfg.RhoMax)
}

// fbm sums the octaves and normalizes the result from
// [-ampSum, +ampSum] onto [0, 1].
func (f *Field) fbm(x, y float64) float64 {
	value := 0.0
	amplitude := 1.0
	frequency := f.baseFreq

	for i := 0; i < f.cfg.Octaves; i++ {
		value += f.noise.noise2(x*frequency, y*frequency) * amplitude
		amplitude *= f.cfg.Persistence
		frequency *= f.cfg.Lacunarity
	}

	normalized := (value/f.ampSum + 1.0) / 2.0
	if math.IsNaN(normalized) {
		return 0.5
	}
	return dynamo.Clamp(normalized, 0.0, 1.0)
}
