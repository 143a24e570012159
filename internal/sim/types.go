package sim

import (
	"fmt"
	"strings"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/rotor"
	"github.com/san-kum/synchro/internal/synchro"
)

// Mode selects which controller, if any, drives the follower.
type Mode string

const (
	Off          Mode = "off"
	ModeBaseline Mode = Mode(synchro.Baseline)
	ModePFD      Mode = Mode(synchro.PFD)
	ModeAdaptive Mode = Mode(synchro.Adaptive)
)

func Modes() []Mode {
	return []Mode{Off, ModeBaseline, ModePFD, ModeAdaptive}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "":
		return Off, nil
	}
	v, err := synchro.ParseVariant(s)
	if err != nil {
		return "", err
	}
	return Mode(v), nil
}

// Variant returns the controller variant for the mode; ok is false for Off.
func (m Mode) Variant() (synchro.Variant, bool) {
	if m == Off {
		return "", false
	}
	return synchro.Variant(m), true
}

// Sample is the observable state after one tick.
type Sample struct {
	Step int
	Time float64
	Mode Mode

	Main     rotor.Snapshot
	Follower rotor.Snapshot

	PhaseError    float64 // rad, wrapped θ_main − θ_follower
	SpeedErrorRPM float64 // RPM_main − RPM_follower
	Correction    float64 // RPM applied on top of nominal

	Control synchro.Telemetry

	BPFMain       float64 // Hz
	BPFFollower   float64 // Hz
	BeatFrequency float64 // Hz
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

type Config struct {
	Dt       float64
	Duration float64
	Mode     Mode
	// SwitchAt > 0 runs with the controller off until that time, then
	// switches to Mode.
	SwitchAt float64
	// RecordEvery keeps every n-th sample in the Result; 0 or 1 keeps all.
	RecordEvery int
}

func (c Config) Validate() error {
	if !dynamo.IsFinite(c.Dt, c.Duration, c.SwitchAt) {
		return dynamo.NewConfigError("sim", "config", c.Dt, "all values must be finite")
	}
	if c.Dt <= 0 {
		return dynamo.NewConfigError("sim", "dt", c.Dt, "must be positive")
	}
	if c.Duration <= 0 {
		return dynamo.NewConfigError("sim", "duration", c.Duration, "must be positive")
	}
	if c.SwitchAt != 0 && (c.SwitchAt < 0 || c.SwitchAt >= c.Duration) {
		return dynamo.NewConfigError("sim", "switch_at", c.SwitchAt, "must lie in (0, duration)")
	}
	if c.RecordEvery < 0 {
		return dynamo.NewConfigError("sim", "record_every", float64(c.RecordEvery), "must not be negative")
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	return nil
}

type Result struct {
	Mode       Mode
	Seed       int64
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
	Duration   float64
	// SwitchTime is when the controller was switched on; 0 without SwitchAt.
	SwitchTime float64
	Anomalies  int
}
