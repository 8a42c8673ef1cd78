package dynamo

import (
	"context"
	"errors"
	"math"
	"testing"
)

type decay struct{}

func (d *decay) Derive(x State, t float64) State { return State{-x[0]} }
func (d *decay) StateDim() int                   { return 1 }

// blowup has the solution 1/(1-t), which diverges at t=1.
type blowup struct{}

func (b *blowup) Derive(x State, t float64) State { return State{x[0] * x[0]} }
func (b *blowup) StateDim() int                   { return 1 }

type eulerStep struct{}

func (e *eulerStep) Step(dyn System, x State, t float64, dt float64) State {
	dx := dyn.Derive(x, t)
	return State{x[0] + dt*dx[0]}
}

// midpoint is a second-order method with no embedded error estimate, so
// adaptive runs fall back to step doubling.
type midpoint struct{}

func (m *midpoint) Step(dyn System, x State, t float64, dt float64) State {
	k1 := dyn.Derive(x, t)
	k2 := dyn.Derive(State{x[0] + 0.5*dt*k1[0]}, t+0.5*dt)
	return State{x[0] + dt*k2[0]}
}

func uniformGrid(n int, dt float64) []float64 {
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = float64(i) * dt
	}
	return grid
}

func TestSimulatorRunFixed(t *testing.T) {
	sim := New(&decay{}, &eulerStep{})

	cfg := DefaultConfig()
	cfg.Adaptive = false
	cfg.Substeps = 10

	result, err := sim.Run(context.Background(), State{1.0}, uniformGrid(11, 0.1), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.States) != 11 {
		t.Errorf("expected 11 states, got %d", len(result.States))
	}
	if len(result.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(result.Times))
	}
	if result.StepsTaken != 100 {
		t.Errorf("expected 100 steps, got %d", result.StepsTaken)
	}

	finalState := result.States[len(result.States)-1][0]
	expected := math.Exp(-1.0)
	if math.Abs(finalState-expected) > 0.01 {
		t.Errorf("expected final state ~%.4f, got %.4f", expected, finalState)
	}
}

func TestSimulatorRunStepDoubling(t *testing.T) {
	sim := New(&decay{}, &midpoint{})

	result, err := sim.Run(context.Background(), State{1.0}, uniformGrid(11, 0.1), DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	finalState := result.States[len(result.States)-1][0]
	if math.Abs(finalState-math.Exp(-1.0)) > 1e-4 {
		t.Errorf("expected final state ~%.6f, got %.6f", math.Exp(-1.0), finalState)
	}
}

func TestSimulatorLandsOnGrid(t *testing.T) {
	sim := New(&decay{}, &midpoint{})
	grid := []float64{0, 0.3, 0.7, 2.5}

	result, err := sim.Run(context.Background(), State{1.0}, grid, DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i, tm := range result.Times {
		if tm != grid[i] {
			t.Errorf("time[%d] = %v, want %v", i, tm, grid[i])
		}
	}
}

func TestSimulatorShortSpanGrid(t *testing.T) {
	sim := New(&decay{}, &midpoint{})

	result, err := sim.Run(context.Background(), State{1.0}, []float64{0, 1e-12}, DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.StepsTaken != 1 || result.Rejected != 0 {
		t.Errorf("expected one accepted step, got %d steps and %d rejections", result.StepsTaken, result.Rejected)
	}
	if got := result.States[1][0]; math.Abs(got-math.Exp(-1e-12)) > 1e-15 {
		t.Errorf("expected final state ~%.15f, got %.15f", math.Exp(-1e-12), got)
	}
}

func TestSimulatorSinglePointGrid(t *testing.T) {
	sim := New(&decay{}, &eulerStep{})

	result, err := sim.Run(context.Background(), State{3.0}, []float64{5}, DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.States) != 1 || result.States[0][0] != 3.0 {
		t.Errorf("expected initial state only, got %v", result.States)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := New(&decay{}, &eulerStep{})

	fixed := DefaultConfig()
	fixed.Adaptive = false
	fixed.Substeps = 0

	noTol := DefaultConfig()
	noTol.Tolerance = 0

	noRejections := DefaultConfig()
	noRejections.MaxRejections = 0

	negativeDt := DefaultConfig()
	negativeDt.MaxDt = -1

	tests := []struct {
		name string
		cfg  Config
		grid []float64
	}{
		{"zero substeps", fixed, uniformGrid(3, 1)},
		{"zero tolerance", noTol, uniformGrid(3, 1)},
		{"zero rejections", noRejections, uniformGrid(3, 1)},
		{"negative max dt", negativeDt, uniformGrid(3, 1)},
		{"empty grid", DefaultConfig(), nil},
		{"decreasing grid", DefaultConfig(), []float64{0, 2, 1}},
		{"duplicate grid point", DefaultConfig(), []float64{0, 1, 1}},
		{"negative grid point", DefaultConfig(), []float64{-1, 0, 1}},
		{"NaN grid point", DefaultConfig(), []float64{0, math.NaN()}},
		{"Inf grid point", DefaultConfig(), []float64{0, math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), State{1.0}, tt.grid, tt.cfg)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestSimulatorDimensionMismatch(t *testing.T) {
	sim := New(&decay{}, &eulerStep{})

	_, err := sim.Run(context.Background(), State{1.0, 2.0}, uniformGrid(3, 1), DefaultConfig())
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSimulatorInvalidInitialState(t *testing.T) {
	sim := New(&decay{}, &eulerStep{})

	_, err := sim.Run(context.Background(), State{math.NaN()}, uniformGrid(3, 1), DefaultConfig())
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSimulatorDetectsBlowup(t *testing.T) {
	tests := []struct {
		name string
		cfg  func() Config
	}{
		{"adaptive", DefaultConfig},
		{"fixed", func() Config {
			cfg := DefaultConfig()
			cfg.Adaptive = false
			cfg.Substeps = 10
			return cfg
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := New(&blowup{}, &midpoint{})

			result, err := sim.Run(context.Background(), State{1.0}, []float64{0, 0.5, 2}, tt.cfg())
			if !errors.Is(err, ErrNumericalInstability) {
				t.Fatalf("expected ErrNumericalInstability, got %v", err)
			}
			if result != nil {
				t.Error("expected no partial result")
			}

			var simErr *SimulationError
			if !errors.As(err, &simErr) {
				t.Fatalf("expected *SimulationError, got %T", err)
			}
			if simErr.Time < 0.5 || simErr.Time > 2 {
				t.Errorf("failure time %v outside the diverging interval", simErr.Time)
			}
		})
	}
}

func TestSimulatorContextCanceled(t *testing.T) {
	sim := New(&decay{}, &eulerStep{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, State{1.0}, uniformGrid(3, 1), DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x State, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	sim := New(&decay{}, &eulerStep{})

	metric := &testMetric{}
	sim.AddMetric(metric)

	result, err := sim.Run(context.Background(), State{1.0}, uniformGrid(11, 0.1), DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 11 {
		t.Errorf("expected 11 observations, got %d", metric.count)
	}
	if result.Evaluations == 0 {
		t.Error("expected derivative evaluations to be counted")
	}
}
