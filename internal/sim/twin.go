package sim

import (
	"context"
	"math"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/logging"
	"github.com/san-kum/synchro/internal/rotor"
	"github.com/san-kum/synchro/internal/synchro"
)

const DefaultBladeCount = 3

// Setup is everything needed to build a Twin.
type Setup struct {
	Field    field.Config
	Main     rotor.Config
	Follower rotor.Config
	// Gains per variant; missing variants use synchro.DefaultGainsFor.
	Gains      map[synchro.Variant]synchro.Gains
	BladeCount int
	Logger     *logging.Logger
}

func DefaultSetup() Setup {
	return Setup{
		Field:      field.DefaultConfig(),
		Main:       rotor.DefaultMain(),
		Follower:   rotor.DefaultFollower(),
		BladeCount: DefaultBladeCount,
	}
}

// Twin steps one density field, a main and a follower rotor and the
// selected synchronization controller. It is not safe for concurrent use.
type Twin struct {
	field    *field.Field
	main     *rotor.Rotor
	follower *rotor.Rotor

	controllers map[Mode]synchro.Controller
	mode        Mode
	active      synchro.Controller

	t          float64
	step       int
	correction float64
	blades     int

	metrics   []Metric
	observers []Observer
	log       *logging.Logger

	anomalies     int
	lastCtrlAnoms int
	lastRejects   [2]int
	saturated     bool
}

func New(s Setup) (*Twin, error) {
	f, err := field.New(s.Field)
	if err != nil {
		return nil, err
	}
	main, err := rotor.New(s.Main)
	if err != nil {
		return nil, err
	}
	follower, err := rotor.New(s.Follower)
	if err != nil {
		return nil, err
	}
	if s.BladeCount <= 0 {
		s.BladeCount = DefaultBladeCount
	}

	main.Prime(f)
	follower.Prime(f)

	tw := &Twin{
		field:       f,
		main:        main,
		follower:    follower,
		controllers: make(map[Mode]synchro.Controller),
		mode:        Off,
		blades:      s.BladeCount,
		log:         s.Logger,
	}

	for _, v := range synchro.Variants() {
		g, ok := s.Gains[v]
		if !ok {
			g = synchro.DefaultGainsFor(v)
		}
		c, err := synchro.New(v, g)
		if err != nil {
			return nil, err
		}
		tw.controllers[Mode(v)] = c
	}

	return tw, nil
}

func (tw *Twin) AddMetric(m Metric)     { tw.metrics = append(tw.metrics, m) }
func (tw *Twin) AddObserver(o Observer) { tw.observers = append(tw.observers, o) }

func (tw *Twin) Field() *field.Field    { return tw.field }
func (tw *Twin) Main() *rotor.Rotor     { return tw.main }
func (tw *Twin) Follower() *rotor.Rotor { return tw.follower }
func (tw *Twin) Mode() Mode             { return tw.mode }
func (tw *Twin) Time() float64          { return tw.t }
func (tw *Twin) Correction() float64    { return tw.correction }
func (tw *Twin) BladeCount() int        { return tw.blades }

// Controller returns the controller used for mode, or nil for Off.
func (tw *Twin) Controller(m Mode) synchro.Controller { return tw.controllers[m] }

// SetMode disables the current controller, enables the one for m and puts
// the follower back on its nominal target. It must be called between
// ticks. Re-selecting the current mode also resets its controller.
// Dropping the correction to 0 is a step of up to the old output in one
// tick; the per-tick rate limit applies only within a mode.
func (tw *Twin) SetMode(m Mode) error {
	m, err := ParseMode(string(m))
	if err != nil {
		return err
	}
	if tw.active != nil {
		tw.active.Disable()
	}

	prev := tw.mode
	tw.mode = m
	tw.active = tw.controllers[m]
	if tw.active != nil {
		tw.active.Enable()
		tw.lastCtrlAnoms = tw.active.Telemetry().Anomalies
	}

	tw.correction = 0
	tw.saturated = false
	tw.follower.SetTargetRPM(tw.follower.NominalRPM())

	tw.log.Info("mode switch", "from", string(prev), "to", string(m), "t", tw.t)
	return nil
}

// Step advances the system by dt: main rotor, follower rotor, one
// controller update, then the follower target. Invalid dt is counted as an
// anomaly and leaves the state untouched.
func (tw *Twin) Step(dt float64) Sample {
	if !(dt > 0) || !dynamo.IsFinite(dt) {
		tw.anomalies++
		tw.log.Debug("rejected step", "dt", dt, "t", tw.t)
		return tw.Sample()
	}

	t := tw.t
	tw.main.Step(dt, t, tw.field)
	tw.follower.Step(dt, t, tw.field)
	tw.watchRotor(0, "main", tw.main)
	tw.watchRotor(1, "follower", tw.follower)

	corr := 0.0
	if tw.active != nil {
		corr = tw.active.Update(synchro.Measurement{
			ThetaMain:     tw.main.BladeAngle(),
			ThetaFollower: tw.follower.BladeAngle(),
			OmegaMain:     tw.main.AngularVelocity(),
			OmegaFollower: tw.follower.AngularVelocity(),
		}, dt)
		tw.watch(tw.active.Telemetry())
	}
	tw.correction = corr
	tw.follower.SetTargetRPM(tw.follower.NominalRPM() + corr)

	tw.t += dt
	tw.step++
	return tw.Sample()
}

func (tw *Twin) watch(tel synchro.Telemetry) {
	if tel.Anomalies != tw.lastCtrlAnoms {
		tw.log.Debug("controller anomaly", "mode", string(tw.mode), "count", tel.Anomalies, "t", tw.t)
		tw.lastCtrlAnoms = tel.Anomalies
	}
	if sat := tel.Saturated(); sat != tw.saturated {
		tw.saturated = sat
		msg := "saturation cleared"
		if sat {
			msg = "saturation onset"
		}
		tw.log.Debug(msg, "mode", string(tw.mode), "t", tw.t,
			"integrator", tel.IntegratorSaturated, "output", tel.OutputSaturated, "rate", tel.RateLimited)
	}
}

func (tw *Twin) watchRotor(i int, name string, r *rotor.Rotor) {
	if n := r.Rejected(); n != tw.lastRejects[i] {
		tw.lastRejects[i] = n
		tw.log.Debug("rotor step rejected", "rotor", name, "count", n, "err", r.Err())
	}
}

// Sample reports the current state without advancing.
func (tw *Twin) Sample() Sample {
	ms := tw.main.Snapshot()
	fs := tw.follower.Snapshot()

	s := Sample{
		Step:          tw.step,
		Time:          tw.t,
		Mode:          tw.mode,
		Main:          ms,
		Follower:      fs,
		PhaseError:    synchro.PhaseError(ms.Theta, fs.Theta),
		SpeedErrorRPM: ms.RPM - fs.RPM,
		Correction:    tw.correction,
		BPFMain:       BladePassFrequency(ms.RPM, tw.blades),
		BPFFollower:   BladePassFrequency(fs.RPM, tw.blades),
	}
	s.BeatFrequency = math.Abs(s.BPFMain - s.BPFFollower)
	if tw.active != nil {
		s.Control = tw.active.Telemetry()
	}
	return s
}

// Anomalies counts rejected ticks in the driver, both rotors and every
// controller.
func (tw *Twin) Anomalies() int {
	n := tw.anomalies + tw.main.Rejected() + tw.follower.Rejected()
	for _, c := range tw.controllers {
		n += c.Telemetry().Anomalies
	}
	return n
}

// BladePassFrequency is rpm/60 · blades, in Hz.
func BladePassFrequency(rpm float64, blades int) float64 {
	return rpm / 60 * float64(blades)
}

// Run resets metrics, selects cfg.Mode (or Off until cfg.SwitchAt) and
// steps for cfg.Duration. On cancellation the partial result is returned
// with ctx.Err().
func (tw *Twin) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Mode, _ = ParseMode(string(cfg.Mode))

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	every := cfg.RecordEvery
	if every <= 0 {
		every = 1
	}

	result := &Result{
		Mode:    cfg.Mode,
		Seed:    tw.field.Config().Seed,
		Samples: make([]Sample, 0, steps/every+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range tw.metrics {
		m.Reset()
	}

	switched := cfg.SwitchAt <= 0
	if switched {
		_ = tw.SetMode(cfg.Mode)
	} else {
		_ = tw.SetMode(Off)
	}
	result.Samples = append(result.Samples, tw.Sample())

	tw.log.Info("run start", "mode", string(cfg.Mode), "dt", cfg.Dt, "duration", cfg.Duration, "switch_at", cfg.SwitchAt)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			tw.finish(result)
			return result, ctx.Err()
		default:
		}

		if !switched && tw.t >= cfg.SwitchAt-cfg.Dt/2 {
			_ = tw.SetMode(cfg.Mode)
			result.SwitchTime = tw.t
			switched = true
		}

		s := tw.Step(cfg.Dt)
		for _, m := range tw.metrics {
			m.Observe(s)
		}
		for _, obs := range tw.observers {
			obs.OnStep(s)
		}

		result.StepsTaken++
		if (i+1)%every == 0 {
			result.Samples = append(result.Samples, s)
		}
	}

	tw.finish(result)
	tw.log.Info("run done", "mode", string(cfg.Mode), "steps", result.StepsTaken, "anomalies", result.Anomalies)
	return result, nil
}

func (tw *Twin) finish(result *Result) {
	result.Duration = tw.t
	result.Anomalies = tw.Anomalies()
	for _, m := range tw.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

// RunWithCallback steps until cfg.Duration, ctx is cancelled or callback
// returns false. Metrics and observers are fed as in Run.
func (tw *Twin) RunWithCallback(ctx context.Context, cfg Config, callback func(Sample) bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := tw.SetMode(cfg.Mode); err != nil {
		return err
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s := tw.Step(cfg.Dt)
		for _, m := range tw.metrics {
			m.Observe(s)
		}
		for _, obs := range tw.observers {
			obs.OnStep(s)
		}
		if !callback(s) {
			return nil
		}
	}
	return nil
}
