// Package experiment runs the generate-and-simulate pipeline: it draws
// regions, integrates each one's logistic growth and attaches the final
// population to a copy of the region.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/integrators"
	"github.com/san-kum/popsim/internal/observability"
	"github.com/san-kum/popsim/internal/region"
)

type Config struct {
	Regions   int
	Capacity  float64
	Grid      []float64
	Seed      int64
	Method    string
	Tolerance float64
	// Workers bounds concurrent simulations. Values <= 1 run sequentially.
	Workers int
	Bounds  region.Bounds

	// Solver overrides. Zero values keep the growth defaults.
	MaxRejections int
	MinDt         float64
	// StepDoubling runs rk4 and euler with adaptive step doubling.
	StepDoubling bool
}

func DefaultConfig() Config {
	return Config{
		Regions:   5,
		Capacity:  growth.DefaultCapacity,
		Grid:      growth.DefaultGrid(),
		Seed:      42,
		Method:    integrators.MethodRK45,
		Tolerance: integrators.DefaultTolerance,
		Workers:   1,
		Bounds:    region.DefaultBounds(),
	}
}

// Result holds the simulated regions and their trajectories, index-aligned
// with the generation order.
type Result struct {
	Regions      []region.Region
	Trajectories []*growth.Trajectory
	Grid         []float64
	Config       Config
	Duration     time.Duration
}

type Runner struct {
	cfg     Config
	sim     *growth.Simulator
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRunner validates cfg and builds the solver. A nil logger falls back to
// slog.Default and nil metrics to an unregistered set.
func NewRunner(cfg Config, logger *slog.Logger, metrics *observability.Metrics) (*Runner, error) {
	if cfg.Regions <= 0 {
		return nil, fmt.Errorf("%w: region count must be positive, got %d", dynamo.ErrInvalidArgument, cfg.Regions)
	}
	if err := dynamo.ValidateGrid(cfg.Grid); err != nil {
		return nil, err
	}
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}

	opts := []growth.Option{
		growth.WithMethod(cfg.Method),
		growth.WithTolerance(cfg.Tolerance),
		growth.WithStepDoubling(cfg.StepDoubling),
	}
	if cfg.MaxRejections != 0 {
		opts = append(opts, growth.WithMaxRejections(cfg.MaxRejections))
	}
	if cfg.MinDt != 0 {
		opts = append(opts, growth.WithMinDt(cfg.MinDt))
	}
	sim, err := growth.NewSimulator(opts...)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}

	return &Runner{
		cfg:     cfg,
		sim:     sim,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	gen, err := region.NewGenerator(rand.New(rand.NewSource(r.cfg.Seed)), r.cfg.Bounds)
	if err != nil {
		return nil, err
	}
	regions, err := gen.Generate(r.cfg.Regions)
	if err != nil {
		return nil, err
	}
	r.metrics.RegionsGenerated.Add(float64(len(regions)))
	r.logger.Debug("regions generated", "count", len(regions), "seed", r.cfg.Seed)

	simulated, trajs, err := r.SimulateRegions(ctx, regions)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	r.metrics.PipelineDuration.Observe(elapsed.Seconds())
	r.logger.Info("pipeline complete",
		"regions", len(simulated),
		"method", r.sim.Method(),
		"adaptive", r.sim.Adaptive(),
		"workers", r.cfg.Workers,
		"duration", elapsed,
	)

	return &Result{
		Regions:      simulated,
		Trajectories: trajs,
		Grid:         append([]float64(nil), r.cfg.Grid...),
		Config:       r.cfg,
		Duration:     elapsed,
	}, nil
}

// SimulateRegions integrates every region over the configured grid using
// P0 = initial population and r = birth - death. The input slice is not
// modified. The first failure cancels the remaining work.
func (r *Runner) SimulateRegions(ctx context.Context, regions []region.Region) ([]region.Region, []*growth.Trajectory, error) {
	out := make([]region.Region, len(regions))
	trajs := make([]*growth.Trajectory, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.Workers))

	for i := range regions {
		i := i
		g.Go(func() error {
			reg := regions[i]
			traj, err := r.simulate(gctx, reg)
			if err != nil {
				return fmt.Errorf("%s: %w", reg.Name, err)
			}
			out[i] = reg.WithFinalPopulation(traj.Final())
			trajs[i] = traj
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Error("simulation failed", "error", err)
		return nil, nil, err
	}
	return out, trajs, nil
}

func (r *Runner) simulate(ctx context.Context, reg region.Region) (*growth.Trajectory, error) {
	traj, err := r.sim.Simulate(ctx, growth.Params{
		Initial:  float64(reg.InitialPopulation),
		Rate:     reg.NetGrowthRate(),
		Capacity: r.cfg.Capacity,
	}, r.cfg.Grid)

	method := r.sim.Method()
	if err != nil {
		r.metrics.Simulations.WithLabelValues(method, outcome(err)).Inc()
		return nil, err
	}

	r.metrics.Simulations.WithLabelValues(method, observability.OutcomeSuccess).Inc()
	r.metrics.RejectedSteps.Add(float64(traj.Rejected))
	r.metrics.StepsPerSimulation.Observe(float64(traj.Steps))
	r.logger.Debug("region simulated",
		"region", reg.Name,
		"final", traj.Final(),
		"steps", traj.Steps,
		"rejected", traj.Rejected,
	)
	return traj, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, dynamo.ErrNumericalInstability):
		return observability.OutcomeUnstable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeCanceled
	default:
		return observability.OutcomeInvalid
	}
}
