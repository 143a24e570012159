package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/integrators"
	"github.com/san-kum/synchro/internal/logging"
	"github.com/san-kum/synchro/internal/rotor"
	"github.com/san-kum/synchro/internal/sim"
	"github.com/san-kum/synchro/internal/synchro"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 30.0
	DefaultMode     = "baseline"
	DefaultLevel    = "info"
)

type Config struct {
	Sim         SimConfig         `yaml:"sim"`
	Field       field.Config      `yaml:"field"`
	Main        rotor.Config      `yaml:"main"`
	Follower    rotor.Config      `yaml:"follower"`
	Controllers ControllersConfig `yaml:"controllers"`
	Log         LogConfig         `yaml:"log"`
}

type SimConfig struct {
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`
	Mode     string  `yaml:"mode"`
	// Seed overrides field.seed when non-zero.
	Seed int64 `yaml:"seed,omitempty"`
	// Integrator applies to both rotors unless a rotor names its own.
	Integrator  string  `yaml:"integrator"`
	BladeCount  int     `yaml:"blade_count"`
	SwitchAt    float64 `yaml:"switch_at,omitempty"`
	RecordEvery int     `yaml:"record_every,omitempty"`
}

type ControllersConfig struct {
	Baseline synchro.Gains `yaml:"baseline"`
	PFD      synchro.Gains `yaml:"pfd"`
	Adaptive synchro.Gains `yaml:"adaptive"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir,omitempty"`
}

func DefaultConfig() *Config {
	main := rotor.DefaultMain()
	follower := rotor.DefaultFollower()
	main.Integrator, follower.Integrator = "", ""

	return &Config{
		Sim: SimConfig{
			Dt:         DefaultDt,
			Duration:   DefaultDuration,
			Mode:       DefaultMode,
			Integrator: integrators.Default,
			BladeCount: sim.DefaultBladeCount,
		},
		Field:    field.DefaultConfig(),
		Main:     main,
		Follower: follower,
		Controllers: ControllersConfig{
			Baseline: synchro.DefaultGainsFor(synchro.Baseline),
			PFD:      synchro.DefaultGainsFor(synchro.PFD),
			Adaptive: synchro.DefaultGainsFor(synchro.Adaptive),
		},
		Log: LogConfig{Level: DefaultLevel},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every section and returns the first problem, usually a
// *dynamo.ConfigError.
func (c *Config) Validate() error {
	if _, err := c.RunConfig(); err != nil {
		return err
	}
	if c.Sim.BladeCount < 1 {
		return dynamo.NewConfigError("sim", "blade_count", float64(c.Sim.BladeCount), "need at least one blade")
	}
	if _, err := integrators.New(c.Sim.Integrator); err != nil {
		return err
	}

	setup := c.Setup(nil)
	if err := setup.Field.Validate(); err != nil {
		return err
	}
	for _, r := range []rotor.Config{setup.Main, setup.Follower} {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for v, g := range setup.Gains {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("controllers.%s: %w", v, err)
		}
	}
	return nil
}

// Setup resolves the file layout into what sim.New needs.
func (c *Config) Setup(log *logging.Logger) sim.Setup {
	f := c.Field
	if c.Sim.Seed != 0 {
		f.Seed = c.Sim.Seed
	}

	main, follower := c.Main, c.Follower
	if main.Integrator == "" {
		main.Integrator = c.Sim.Integrator
	}
	if follower.Integrator == "" {
		follower.Integrator = c.Sim.Integrator
	}

	return sim.Setup{
		Field:    f,
		Main:     main,
		Follower: follower,
		Gains: map[synchro.Variant]synchro.Gains{
			synchro.Baseline: c.Controllers.Baseline,
			synchro.PFD:      c.Controllers.PFD,
			synchro.Adaptive: c.Controllers.Adaptive,
		},
		BladeCount: c.Sim.BladeCount,
		Logger:     log,
	}
}

func (c *Config) RunConfig() (sim.Config, error) {
	mode, err := sim.ParseMode(c.Sim.Mode)
	if err != nil {
		return sim.Config{}, err
	}
	rc := sim.Config{
		Dt:          c.Sim.Dt,
		Duration:    c.Sim.Duration,
		Mode:        mode,
		SwitchAt:    c.Sim.SwitchAt,
		RecordEvery: c.Sim.RecordEvery,
	}
	if err := rc.Validate(); err != nil {
		return sim.Config{}, err
	}
	return rc, nil
}

// Gains returns the gains configured for v.
func (c *Config) Gains(v synchro.Variant) synchro.Gains {
	switch v {
	case synchro.PFD:
		return c.Controllers.PFD
	case synchro.Adaptive:
		return c.Controllers.Adaptive
	default:
		return c.Controllers.Baseline
	}
}

func (c *Config) SetGains(v synchro.Variant, g synchro.Gains) {
	switch v {
	case synchro.PFD:
		c.Controllers.PFD = g
	case synchro.Adaptive:
		c.Controllers.Adaptive = g
	default:
		c.Controllers.Baseline = g
	}
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
