package models

import (
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
)

// Logistic is single-population growth limited by a carrying capacity:
//
//	dP/dt = r * P * (1 - P/K)
type Logistic struct {
	Rate     float64
	Capacity float64
}

func NewLogistic(rate, capacity float64) *Logistic {
	return &Logistic{
		Rate:     rate,
		Capacity: capacity,
	}
}

func (l *Logistic) StateDim() int {
	return 1
}

func (l *Logistic) Derive(x dynamo.State, t float64) dynamo.State {
	p := x[0]
	return dynamo.State{l.Rate * p * (1 - p/l.Capacity)}
}

// Exact evaluates the closed-form solution at t for P(0) = p0.
func (l *Logistic) Exact(p0, t float64) float64 {
	if l.Rate == 0 || p0 == l.Capacity {
		return p0
	}
	return l.Capacity / (1 + (l.Capacity-p0)/p0*math.Exp(-l.Rate*t))
}
