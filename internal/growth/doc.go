// Package growth simulates logistic population growth.
//
// A [Simulator] integrates
//
//	dP/dt = r * P * (1 - P/K)
//
// over a caller-supplied time grid and returns a [Trajectory] aligned with
// that grid. The default method is adaptive Dormand-Prince RK45 with a
// 1e-6 mixed tolerance; fixed-step RK4 and Euler are available through
// [WithMethod].
//
// Failures wrap [dynamo.ErrInvalidArgument] (non-positive initial population
// or capacity, malformed grid) or [dynamo.ErrNumericalInstability] (the
// solver could not meet its tolerance). No partial trajectory is returned.
//
// A Simulator holds only configuration and is safe for concurrent use.
package growth
