// Package viz renders simulated regions in the terminal.
//
//   - [RegionTable]: per-region rates and initial/final population
//   - [PlotTrajectories]: asciigraph line plot of several trajectories
//   - [Viewer]: Bubble Tea model for browsing one run region by region
//
// # Key Bindings
//
//	↑/k ↓/j - Select region
//	g/G     - First/last region
//	t       - Cycle color themes
//	q       - Quit
package viz
