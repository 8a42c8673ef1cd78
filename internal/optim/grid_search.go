package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/experiment"
	"github.com/san-kum/popsim/internal/metrics"
	"github.com/san-kum/popsim/internal/observability"
)

// Swept parameter names understood by ExperimentObjective.
const (
	ParamCapacity  = "capacity"
	ParamSeed      = "seed"
	ParamTolerance = "tolerance"
	ParamRegions   = "regions"
)

var ErrNoFeasiblePoint = errors.New("optim: no grid point evaluated successfully")

// Axis is one swept parameter and the values it takes.
type Axis struct {
	Name   string
	Values []float64
}

// Point is one evaluated parameter combination. Score is NaN when Err is set.
type Point struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type GridSearch struct {
	axes []Axis
}

func NewGridSearch(axes ...Axis) (*GridSearch, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: grid search needs at least one axis", dynamo.ErrInvalidArgument)
	}
	seen := make(map[string]bool, len(axes))
	for _, a := range axes {
		if a.Name == "" || len(a.Values) == 0 {
			return nil, fmt.Errorf("%w: axis %q has no values", dynamo.ErrInvalidArgument, a.Name)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("%w: duplicate axis %q", dynamo.ErrInvalidArgument, a.Name)
		}
		seen[a.Name] = true
	}
	return &GridSearch{axes: axes}, nil
}

// Size is the number of combinations Search evaluates.
func (g *GridSearch) Size() int {
	n := 1
	for _, a := range g.axes {
		n *= len(a.Values)
	}
	return n
}

// Points enumerates the cartesian product with the last axis varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	out := make([]map[string]float64, 0, g.Size())
	g.enumerate(0, make(map[string]float64, len(g.axes)), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.axes) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}
	axis := g.axes[depth]
	for _, v := range axis.Values {
		current[axis.Name] = v
		g.enumerate(depth+1, current, out)
	}
}

// Search evaluates every point and returns them in enumeration order with the
// index of the lowest score. Failed points are kept with their error; only
// context cancellation stops the search early.
func (g *GridSearch) Search(ctx context.Context, eval Objective) ([]Point, int, error) {
	points := g.Points()
	results := make([]Point, 0, len(points))
	best := -1

	for _, params := range points {
		if err := ctx.Err(); err != nil {
			return results, best, err
		}

		score, err := eval(ctx, params)
		if err == nil && math.IsNaN(score) {
			err = fmt.Errorf("%w: objective is NaN", dynamo.ErrNumericalInstability)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return results, best, err
			}
			results = append(results, Point{Params: params, Score: math.NaN(), Err: err})
			continue
		}

		results = append(results, Point{Params: params, Score: score})
		if best < 0 || score < results[best].Score {
			best = len(results) - 1
		}
	}

	if best < 0 {
		return results, best, ErrNoFeasiblePoint
	}
	return results, best, nil
}

// ExperimentObjective runs the pipeline from base with the swept parameters
// applied and scores it by the mean of the named trajectory metric over all
// regions. Regions that never reached a threshold metric's threshold are
// left out of the mean. With maximize set the score is negated so Search
// still minimises.
func ExperimentObjective(base experiment.Config, metric string, maximize bool, logger *slog.Logger, m *observability.Metrics) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return 0, err
		}
		runner, err := experiment.NewRunner(cfg, logger, m)
		if err != nil {
			return 0, err
		}
		res, err := runner.Run(ctx)
		if err != nil {
			return 0, err
		}

		sum, n := 0.0, 0
		for _, t := range res.Trajectories {
			v, ok := t.Metrics[metric]
			if !ok {
				return 0, fmt.Errorf("%w: unknown metric %q", dynamo.ErrInvalidArgument, metric)
			}
			if !metrics.Reached(metric, v) {
				continue
			}
			sum += v
			n++
		}
		if n == 0 {
			return math.NaN(), nil
		}
		score := sum / float64(n)
		if maximize {
			score = -score
		}
		return score, nil
	}
}

// Apply returns a copy of base with the named parameters set.
func Apply(base experiment.Config, params map[string]float64) (experiment.Config, error) {
	cfg := base
	cfg.Grid = append([]float64(nil), base.Grid...)
	for name, v := range params {
		switch name {
		case ParamCapacity:
			cfg.Capacity = v
		case ParamSeed:
			cfg.Seed = int64(v)
		case ParamTolerance:
			cfg.Tolerance = v
		case ParamRegions:
			cfg.Regions = int(v)
		default:
			return cfg, fmt.Errorf("%w: unknown sweep parameter %q", dynamo.ErrInvalidArgument, name)
		}
	}
	return cfg, nil
}
