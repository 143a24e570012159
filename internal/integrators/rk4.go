package integrators

import "github.com/san-kum/synchro/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta method. Stage derivatives
// are copied out of Derive's result, so a System may reuse its output
// slice between calls. An RK4 keeps stage buffers and must not be shared
// between goroutines.
type RK4 struct {
	k     [4]dynamo.State
	stage dynamo.State
}

// classical tableau: stage nodes as fractions of dt, and output weights
var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1.0 / 6, 2.0 / 6, 2.0 / 6, 1.0 / 6}
)

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	if len(r.stage) != n {
		for s := range r.k {
			r.k[s] = make(dynamo.State, n)
		}
		r.stage = make(dynamo.State, n)
	}

	next := x.Clone()
	for s := range r.k {
		in := x
		if s > 0 {
			h := rk4Nodes[s] * dt
			for i := range r.stage {
				r.stage[i] = x[i] + h*r.k[s-1][i]
			}
			in = r.stage
		}
		copy(r.k[s], dyn.Derive(in, u, t+rk4Nodes[s]*dt))

		w := rk4Weights[s] * dt
		for i := range next {
			next[i] += w * r.k[s][i]
		}
	}
	return next
}
