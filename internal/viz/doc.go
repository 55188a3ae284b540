// Package viz renders cable systems in the terminal.
//
// It only reads [dynamo.Frame] values and never mutates a system:
//
//   - [Model]: Bubble Tea live view that steps a system and draws the
//     cable on a braille [Canvas]
//   - [Progress]: line oriented observer for non-interactive runs
//   - [Profile], [History], [Summary]: static plots and reports
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	[ ]   - Scrub recorded frames
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
