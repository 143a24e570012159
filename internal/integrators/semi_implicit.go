package integrators

import "github.com/san-kum/synchro/internal/dynamo"

// SemiImplicitEuler (symplectic Euler) expects the state laid out as
// positions in the first half and velocities in the second half. Velocities
// are advanced first; positions then use the updated velocities.
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (s *SemiImplicitEuler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	n := len(x)
	half := n / 2

	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, n)

	for i := 0; i < half; i++ {
		result[half+i] = x[half+i] + dx[half+i]*dt
	}
	for i := 0; i < half; i++ {
		result[i] = x[i] + result[half+i]*dt
	}
	// odd trailing component has no velocity partner
	for i := 2 * half; i < n; i++ {
		result[i] = x[i] + dx[i]*dt
	}

	return result
}
