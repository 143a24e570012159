package metrics

import (
	"math"

	"github.com/san-kum/synchro/internal/sim"
)

// ControlEffort is the mean |correction| in RPM.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort_rpm",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(x sim.Sample) {
	c.sum += math.Abs(x.Correction)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Saturation is the fraction of ticks on which any controller limiter was
// active. Ticks with the controller off count as unsaturated.
type Saturation struct {
	saturated int
	samples   int
}

func NewSaturation() *Saturation { return &Saturation{} }

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(x sim.Sample) {
	if x.Control.Enabled && x.Control.Saturated() {
		s.saturated++
	}
	s.samples++
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}

// BeatFrequency is the mean |BPF_main − BPF_follower| in Hz.
type BeatFrequency struct {
	sum     float64
	samples int
}

func NewBeatFrequency() *BeatFrequency { return &BeatFrequency{} }

func (b *BeatFrequency) Name() string { return "mean_beat_hz" }

func (b *BeatFrequency) Observe(x sim.Sample) {
	b.sum += x.BeatFrequency
	b.samples++
}

func (b *BeatFrequency) Value() float64 {
	if b.samples == 0 {
		return 0
	}
	return b.sum / float64(b.samples)
}

func (b *BeatFrequency) Reset() {
	b.sum = 0
	b.samples = 0
}
