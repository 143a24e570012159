// Package viz provides the terminal live view of the twin-rotor simulation.
//
// The view is a Bubble Tea program:
//
//   - [Model]: steps a [sim.Twin] in real time and renders the density field
//     around both rotors, blade-angle dials, a |ΔRPM| history chart and the
//     controller telemetry
//   - [Canvas]: Braille-based pixel canvas used for the dials
//   - [RunInteractive]: preset and mode picker in front of the live view
//
// # Key Bindings
//
//	Space - Pause/Resume
//	0-3   - Controller off / baseline / pfd / adaptive
//	R     - Reset to t = 0
//	+/-   - Simulation speed
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
