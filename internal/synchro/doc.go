// Package synchro implements phase synchronization controllers for a pair
// of propellers.
//
// A Controller reads both blade angles (and, for some variants, both shaft
// speeds) once per tick and returns an RPM correction for the follower's
// governor target. The correction is positive when the main propeller
// leads, so adding it to the follower's nominal RPM closes the phase gap.
//
// Three variants share one PID-on-phase core:
//
//   - Baseline: wrapped phase error, deadband, clamped integrator, low-pass
//     filtered derivative, per-tick rate limit and an output clip.
//   - PFD: Baseline plus a filtered frequency (Δω) term, which reacts to
//     speed divergence before it has integrated into phase error.
//   - Adaptive: Baseline with gains scheduled on the error magnitude and
//     blended toward the scheduled set each tick.
//
// Controllers are bumpless: every Disabled→Enabled transition clears the
// integrator, filters and previous output, and the first enabled tick
// seeds the previous error from the measurement so the derivative starts
// at zero. Transient bad inputs never return errors; the last good output
// is held and the event is counted in Telemetry.
package synchro
