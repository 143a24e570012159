package metrics

import (
	"math"

	"github.com/san-kum/synchro/internal/sim"
)

const DefaultRollingWindow = 15.0 // s

type timed struct {
	t, v float64
}

// RollingSpeedError is the mean |ΔRPM| over the trailing time window.
// Samples older than window seconds before the newest sample are dropped.
type RollingSpeedError struct {
	window float64
	buf    []timed
	head   int
	sum    float64
}

func NewRollingSpeedError(window float64) *RollingSpeedError {
	if !(window > 0) {
		window = DefaultRollingWindow
	}
	return &RollingSpeedError{window: window}
}

func (r *RollingSpeedError) Name() string { return "rolling_speed_error_rpm" }

func (r *RollingSpeedError) Observe(x sim.Sample) {
	v := math.Abs(x.SpeedErrorRPM)
	r.buf = append(r.buf, timed{t: x.Time, v: v})
	r.sum += v

	cutoff := x.Time - r.window
	for r.head < len(r.buf) && r.buf[r.head].t < cutoff {
		r.sum -= r.buf[r.head].v
		r.head++
	}
	// compact once the dead prefix dominates
	if r.head > 1024 && r.head > len(r.buf)/2 {
		n := copy(r.buf, r.buf[r.head:])
		r.buf = r.buf[:n]
		r.head = 0
	}
}

func (r *RollingSpeedError) Value() float64 {
	n := len(r.buf) - r.head
	if n <= 0 {
		return 0
	}
	return r.sum / float64(n)
}

func (r *RollingSpeedError) Len() int { return len(r.buf) - r.head }

func (r *RollingSpeedError) Reset() {
	r.buf = r.buf[:0]
	r.head = 0
	r.sum = 0
}

// Standard returns the metric set attached to every stored run.
func Standard() []sim.Metric {
	return []sim.Metric{
		NewMeanSpeedError(),
		NewMaxSpeedError(),
		NewStdSpeedError(),
		NewMeanPhaseError(),
		NewMaxPhaseError(),
		NewControlEffort(),
		NewSaturation(),
		NewBeatFrequency(),
		NewRollingSpeedError(DefaultRollingWindow),
	}
}
