// Package analysis provides validation and post-run analysis tools.
//
// Field validation:
//
//   - [FrequencyAnalysis]: Welch power spectrum of density at a fixed point,
//     compared against the frozen-turbulence frequency V/λ
//   - [SpatialAnalysis]: grid statistics and a wavelength estimate from the
//     first zero crossing of the horizontal autocorrelation
//   - [VerifyDrift]: checks ρ(x, t) ≈ ρ(x + V·Δt, t + Δt)
//
// Run analysis:
//
//   - [SpeedErrorSpectrum]: spectrum of the RPM mismatch of a run
//   - [GeneratePhasePortrait]: (phase error, speed error) trajectory
//
// # Validation
//
//	rep := analysis.Validate(f, 900, -60)
//	if !rep.Drift.OK {
//	    // field does not advect rigidly
//	}
package analysis
