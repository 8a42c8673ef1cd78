package growth

import (
	"fmt"
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
)

const (
	DefaultCapacity = 100000.0
	DefaultHorizon  = 50.0
	DefaultPoints   = 100
)

// Linspace returns n evenly spaced points over [start, stop]. The endpoints
// are exact.
func Linspace(start, stop float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: grid needs at least one point, got %d", dynamo.ErrInvalidArgument, n)
	}
	if math.IsNaN(start) || math.IsNaN(stop) || math.IsInf(start, 0) || math.IsInf(stop, 0) {
		return nil, fmt.Errorf("%w: grid bounds must be finite", dynamo.ErrInvalidArgument)
	}
	if n == 1 {
		return []float64{start}, nil
	}

	grid := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range grid {
		grid[i] = start + float64(i)*step
	}
	grid[n-1] = stop
	return grid, nil
}

// DefaultGrid is 100 evenly spaced points over [0, 50].
func DefaultGrid() []float64 {
	grid, _ := Linspace(0, DefaultHorizon, DefaultPoints)
	return grid
}
