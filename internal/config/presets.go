package config

import "sort"

// Presets are named field conditions layered over DefaultConfig.
var Presets = map[string]func(*Config){
	"standard": func(c *Config) {},
	"calm": func(c *Config) {
		c.Field.Wavelength = 300
		c.Field.DriftVelocity = 20
		c.Field.Octaves = 3
		c.Field.RhoMin, c.Field.RhoMax = 1.18, 1.27
	},
	"gusty": func(c *Config) {
		c.Field.Wavelength = 80
		c.Field.DriftVelocity = 70
		c.Field.Octaves = 5
		c.Field.Persistence = 0.6
	},
	"long_wave": func(c *Config) {
		c.Field.Wavelength = 400
		c.Field.Octaves = 2
		c.Sim.Duration = 60
	},
}

// GetPreset returns a fresh config for the named preset, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
