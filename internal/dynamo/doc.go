// Package dynamo provides core simulation primitives for ordinary
// differential equations.
//
// The package defines the fundamental interfaces and types:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [AdaptiveIntegrator]: integrator with embedded error control
//   - [Simulator]: integrates a system over a caller-supplied time grid
//
// # Example
//
//	dyn := models.NewLogistic(0.03, 100000)
//	sim := dynamo.New(dyn, integrators.NewRK45())
//	result, err := sim.Run(ctx, dynamo.State{10000}, grid, dynamo.DefaultConfig())
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. Metrics hold per-run state, so
// parallel runs must each construct their own.
package dynamo
