package dynamo

import (
	"math"

	"golang.org/x/exp/constraints"
)

const TwoPi = 2 * math.Pi

// WrapPhase maps an angle difference onto (-π, π]. Plain subtraction of two
// blade angles is not enough near the 2π seam.
func WrapPhase(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}

// WrapAngle maps an angle onto [0, 2π).
func WrapAngle(a float64) float64 {
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	if a >= TwoPi {
		a = 0
	}
	return a
}

func RPMToRadS(rpm float64) float64 { return rpm * TwoPi / 60 }
func RadSToRPM(w float64) float64   { return w * 60 / TwoPi }

func Clamp[T constraints.Ordered](x, low, high T) T {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// IsFinite reports whether every value is neither NaN nor ±Inf.
func IsFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
