package growth

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/integrators"
	"github.com/san-kum/popsim/internal/metrics"
	"github.com/san-kum/popsim/internal/models"
)

// Params are the inputs of one logistic run.
type Params struct {
	Initial  float64
	Rate     float64
	Capacity float64
}

func (p Params) Validate() error {
	if !finite(p.Initial) || !finite(p.Rate) || !finite(p.Capacity) {
		return fmt.Errorf("%w: parameters must be finite (P0=%g r=%g K=%g)",
			dynamo.ErrInvalidArgument, p.Initial, p.Rate, p.Capacity)
	}
	if p.Initial <= 0 {
		return fmt.Errorf("%w: initial population must be positive, got %g", dynamo.ErrInvalidArgument, p.Initial)
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("%w: carrying capacity must be positive, got %g", dynamo.ErrInvalidArgument, p.Capacity)
	}
	return nil
}

// Trajectory is a population series aligned with the input grid.
type Trajectory struct {
	Times      []float64
	Population []float64
	Metrics    map[string]float64

	Steps       int
	Rejected    int
	Evaluations int
}

// Final returns the population at the last grid point.
func (t *Trajectory) Final() float64 {
	return t.Population[len(t.Population)-1]
}

func (t *Trajectory) Len() int { return len(t.Population) }

type Option func(*Simulator)

func WithMethod(name string) Option {
	return func(s *Simulator) { s.method = name }
}

func WithTolerance(tol float64) Option {
	return func(s *Simulator) { s.cfg.Tolerance = tol }
}

// WithSubsteps sets the steps per grid interval for fixed-step methods.
func WithSubsteps(n int) Option {
	return func(s *Simulator) { s.cfg.Substeps = n }
}

// WithMaxRejections bounds consecutive rejected adaptive steps before a run
// is reported unstable.
func WithMaxRejections(n int) Option {
	return func(s *Simulator) { s.cfg.MaxRejections = n }
}

// WithMinDt sets the smallest adaptive step tried before a run is reported
// unstable.
func WithMinDt(dt float64) Option {
	return func(s *Simulator) { s.cfg.MinDt = dt }
}

// WithStepDoubling makes fixed-step methods adaptive by comparing one full
// step against two half steps. It has no effect on rk45.
func WithStepDoubling(on bool) Option {
	return func(s *Simulator) { s.stepDoubling = on }
}

type Simulator struct {
	method       string
	stepDoubling bool
	cfg          dynamo.Config
}

func NewSimulator(opts ...Option) (*Simulator, error) {
	s := &Simulator{
		method: integrators.MethodRK45,
		cfg:    dynamo.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	integ, err := integrators.New(s.method)
	if err != nil {
		return nil, err
	}
	_, s.cfg.Adaptive = integ.(dynamo.AdaptiveIntegrator)
	s.cfg.Adaptive = s.cfg.Adaptive || s.stepDoubling

	if s.cfg.Adaptive {
		if !(s.cfg.Tolerance > 0) {
			return nil, fmt.Errorf("%w: tolerance must be positive, got %g", dynamo.ErrInvalidArgument, s.cfg.Tolerance)
		}
		if !(s.cfg.MinDt > 0) {
			return nil, fmt.Errorf("%w: min dt must be positive, got %g", dynamo.ErrInvalidArgument, s.cfg.MinDt)
		}
		if s.cfg.MaxRejections <= 0 {
			return nil, fmt.Errorf("%w: max rejections must be positive, got %d", dynamo.ErrInvalidArgument, s.cfg.MaxRejections)
		}
	}
	if !s.cfg.Adaptive && s.cfg.Substeps <= 0 {
		return nil, fmt.Errorf("%w: substeps must be positive, got %d", dynamo.ErrInvalidArgument, s.cfg.Substeps)
	}
	return s, nil
}

func (s *Simulator) Method() string { return s.method }

// Adaptive reports whether runs use error-controlled step sizes.
func (s *Simulator) Adaptive() bool { return s.cfg.Adaptive }

func (s *Simulator) Simulate(ctx context.Context, p Params, grid []float64) (*Trajectory, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	integ, err := integrators.New(s.method)
	if err != nil {
		return nil, err
	}

	sim := dynamo.New(models.NewLogistic(p.Rate, p.Capacity), integ)
	for _, m := range metrics.Default(p.Capacity) {
		sim.AddMetric(m)
	}

	result, err := sim.Run(ctx, dynamo.State{p.Initial}, grid, s.cfg)
	if err != nil {
		return nil, err
	}

	pop := make([]float64, len(result.States))
	for i, x := range result.States {
		pop[i] = x[0]
	}

	return &Trajectory{
		Times:       result.Times,
		Population:  pop,
		Metrics:     result.Metrics,
		Steps:       result.StepsTaken,
		Rejected:    result.Rejected,
		Evaluations: result.Evaluations,
	}, nil
}

var defaultSimulator, _ = NewSimulator()

// Simulate runs the default adaptive solver.
func Simulate(initial, rate, capacity float64, grid []float64) (*Trajectory, error) {
	return defaultSimulator.Simulate(context.Background(), Params{
		Initial:  initial,
		Rate:     rate,
		Capacity: capacity,
	}, grid)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
