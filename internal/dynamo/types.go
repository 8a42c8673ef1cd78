package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(dyn System, x State, t float64, dt float64) State
}

// AdaptiveIntegrator attempts a step of size dt and reports whether the local
// error estimate met tol. dtNext is the suggested size of the next attempt,
// whether or not this one was accepted.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn System, x State, t, dt, tol float64) (next State, dtNext float64, accepted bool)
}

type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

type Config struct {
	// Tolerance is the mixed absolute/relative local error tolerance for
	// adaptive stepping.
	Tolerance float64
	// InitialDt is the first adaptive step attempt. Zero picks 1% of the grid span.
	InitialDt float64
	// MaxDt caps adaptive steps. Zero means uncapped.
	MaxDt float64
	MinDt float64
	// MaxRejections bounds consecutive rejected attempts before the run is
	// declared unstable.
	MaxRejections int
	MaxSteps      int
	// Substeps is the number of equal steps per grid interval for fixed-step
	// integrators.
	Substeps int
	Adaptive bool
}

func DefaultConfig() Config {
	return Config{
		Tolerance:     1e-6,
		MinDt:         1e-10,
		MaxRejections: 50,
		MaxSteps:      1_000_000,
		Substeps:      20,
		Adaptive:      true,
	}
}

type Result struct {
	States      []State
	Times       []float64
	Metrics     map[string]float64
	StepsTaken  int
	Rejected    int
	Evaluations int
}
