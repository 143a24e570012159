package synchro

// BaselineController is PID on wrapped phase error.
type BaselineController struct {
	core
}

func NewBaseline(g Gains) *BaselineController {
	return &BaselineController{core: newCore(g)}
}

func (b *BaselineController) Update(m Measurement, dt float64) float64 {
	if !b.enabled {
		return 0
	}
	if !b.accept(m, dt) {
		return b.prevOutput
	}
	e := PhaseError(m.ThetaMain, m.ThetaFollower)
	return b.limit(b.pid(e, dt), dt)
}

func (b *BaselineController) Enable()              { b.enable() }
func (b *BaselineController) Disable()             { b.disable() }
func (b *BaselineController) Enabled() bool        { return b.enabled }
func (b *BaselineController) Telemetry() Telemetry { return b.telemetry() }
func (b *BaselineController) Variant() Variant     { return Baseline }
func (b *BaselineController) Gains() Gains         { return b.g }
