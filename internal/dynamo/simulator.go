package dynamo

import (
	"context"
	"math"
)

type Simulator struct {
	dyn        System
	integrator Integrator
	metrics    []Metric
}

func New(dyn System, integrator Integrator) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		metrics:    make([]Metric, 0),
	}
}

func (s *Simulator) AddMetric(m Metric) { s.metrics = append(s.metrics, m) }

// Run integrates from x0 at grid[0] and records the state at every grid
// point. On any error the partial result is discarded.
func (s *Simulator) Run(ctx context.Context, x0 State, grid []float64, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := ValidateGrid(grid); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, ErrDimensionMismatch
	}
	if !x0.IsValid() {
		return nil, invalidf("initial state %v is not finite", x0)
	}

	counted := &countingSystem{System: s.dyn}
	st := &run{
		sim: s,
		dyn: counted,
		cfg: cfg,
		result: &Result{
			States:  make([]State, 0, len(grid)),
			Times:   make([]float64, 0, len(grid)),
			Metrics: make(map[string]float64),
		},
		dt: initialDt(grid, cfg),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	st.record(x, grid[0])

	for i := 1; i < len(grid); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var err error
		if cfg.Adaptive {
			x, err = st.advanceAdaptive(x, grid[i-1], grid[i])
		} else {
			x, err = st.advanceFixed(x, grid[i-1], grid[i])
		}
		if err != nil {
			return nil, err
		}
		st.record(x, grid[i])
	}

	st.result.Evaluations = counted.evals
	for _, m := range s.metrics {
		st.result.Metrics[m.Name()] = m.Value()
	}

	return st.result, nil
}

// ValidateGrid checks that grid is non-empty, finite, non-negative and
// strictly increasing.
func ValidateGrid(grid []float64) error {
	if len(grid) == 0 {
		return invalidf("time grid is empty")
	}
	for i, t := range grid {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return invalidf("time grid point %d is not finite", i)
		}
		if t < 0 {
			return invalidf("time grid point %d is negative (%g)", i, t)
		}
		if i > 0 && t <= grid[i-1] {
			return invalidf("time grid is not strictly increasing at index %d", i)
		}
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Adaptive {
		if cfg.Tolerance <= 0 {
			return invalidf("tolerance must be positive for adaptive stepping, got %g", cfg.Tolerance)
		}
		if cfg.MinDt <= 0 {
			return invalidf("min dt must be positive, got %g", cfg.MinDt)
		}
		if cfg.MaxRejections <= 0 {
			return invalidf("max rejections must be positive, got %d", cfg.MaxRejections)
		}
		if cfg.MaxDt < 0 || cfg.InitialDt < 0 {
			return invalidf("dt bounds must not be negative")
		}
	} else if cfg.Substeps <= 0 {
		return invalidf("substeps must be positive, got %d", cfg.Substeps)
	}
	if cfg.MaxSteps <= 0 {
		return invalidf("max steps must be positive, got %d", cfg.MaxSteps)
	}
	return nil
}

func initialDt(grid []float64, cfg Config) float64 {
	dt := cfg.InitialDt
	if dt == 0 {
		span := grid[len(grid)-1] - grid[0]
		if span == 0 {
			span = 1
		}
		dt = span / 100
	}
	if cfg.MaxDt > 0 && dt > cfg.MaxDt {
		dt = cfg.MaxDt
	}
	// Short grids are handled by clamping each step to the interval end.
	if cfg.Adaptive && dt < cfg.MinDt {
		dt = cfg.MinDt
	}
	return dt
}

type run struct {
	sim    *Simulator
	dyn    System
	cfg    Config
	result *Result
	dt     float64
}

func (r *run) record(x State, t float64) {
	for _, m := range r.sim.metrics {
		m.Observe(x, t)
	}
	r.result.States = append(r.result.States, x.Clone())
	r.result.Times = append(r.result.Times, t)
}

func (r *run) unstable(x State, t float64) error {
	return &SimulationError{
		Step:    r.result.StepsTaken,
		Time:    t,
		State:   x.Clone(),
		Wrapped: ErrNumericalInstability,
	}
}

// advanceAdaptive steps from t0 to t1, clamping the final step so the
// trajectory lands exactly on t1.
func (r *run) advanceAdaptive(x State, t0, t1 float64) (State, error) {
	t := t0
	rejections := 0

	for t < t1 {
		if r.result.StepsTaken >= r.cfg.MaxSteps {
			return nil, r.unstable(x, t)
		}
		if r.dt < r.cfg.MinDt {
			return nil, r.unstable(x, t)
		}

		step := r.dt
		last := false
		if t+step >= t1 {
			step = t1 - t
			last = true
		}

		next, dtNext, accepted := r.adaptiveStep(x, t, step)
		if !accepted || !next.IsValid() {
			r.result.Rejected++
			rejections++
			if rejections > r.cfg.MaxRejections {
				return nil, r.unstable(x, t)
			}
			if math.IsNaN(dtNext) || dtNext >= step {
				dtNext = step * 0.25
			}
			r.dt = dtNext
			continue
		}

		rejections = 0
		x = next
		if last {
			t = t1
		} else {
			t += step
		}
		r.result.StepsTaken++

		if !last || dtNext > r.dt {
			r.dt = dtNext
		}
		if r.cfg.MaxDt > 0 && r.dt > r.cfg.MaxDt {
			r.dt = r.cfg.MaxDt
		}
	}

	return x, nil
}

func (r *run) adaptiveStep(x State, t, dt float64) (State, float64, bool) {
	if adaptive, ok := r.sim.integrator.(AdaptiveIntegrator); ok {
		return adaptive.StepAdaptive(r.dyn, x, t, dt, r.cfg.Tolerance)
	}

	// Step doubling for integrators without an embedded error estimate.
	x1 := r.sim.integrator.Step(r.dyn, x, t, dt)
	xHalf := r.sim.integrator.Step(r.dyn, x, t, dt/2)
	x2 := r.sim.integrator.Step(r.dyn, xHalf, t+dt/2, dt/2)

	err := x1.Sub(x2).Norm() / (r.cfg.Tolerance * (1 + x2.Norm()))
	if math.IsNaN(err) || err > 1 {
		return x2, dt / 2, false
	}
	if err < 0.1 {
		return x2, dt * 2, true
	}
	return x2, dt, true
}

func (r *run) advanceFixed(x State, t0, t1 float64) (State, error) {
	n := r.cfg.Substeps
	dt := (t1 - t0) / float64(n)

	for j := 0; j < n; j++ {
		t := t0 + float64(j)*dt
		x = r.sim.integrator.Step(r.dyn, x, t, dt)
		r.result.StepsTaken++
		if !x.IsValid() {
			return nil, r.unstable(x, t+dt)
		}
	}

	return x, nil
}

type countingSystem struct {
	System
	evals int
}

func (c *countingSystem) Derive(x State, t float64) State {
	c.evals++
	return c.System.Derive(x, t)
}
