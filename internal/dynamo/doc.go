// Package dynamo provides the shared primitives of the synchrophaser
// simulation.
//
// The package defines the small set of interfaces and helpers every other
// package builds on:
//
//   - [State]: vector representing a rotor's integrated state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [DensitySource]: anything that can be sampled for air density
//   - [ConfigError]: eager construction-time validation failure
//
// Phase helpers ([WrapPhase], [WrapAngle]) and unit conversions
// ([RPMToRadS], [RadSToRPM]) live here so the rotor, the controllers and
// the driver agree on a single definition of blade phase.
//
// # Thread Safety
//
// Nothing in this package holds mutable state. [ParallelFor] is safe to
// call from multiple goroutines as long as fn is.
package dynamo
