package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/popsim/internal/dynamo"
)

type Summary struct {
	Count  int
	Mean   float64
	StdDev float64 // sample standard deviation, 0 for a single value
	Min    float64
	Median float64
	Max    float64
}

func Describe(values []float64) (Summary, error) {
	n := len(values)
	if n == 0 {
		return Summary{}, fmt.Errorf("%w: no values to describe", dynamo.ErrInvalidArgument)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	ss := 0.0
	for _, v := range sorted {
		d := v - mean
		ss += d * d
	}
	std := 0.0
	if n > 1 {
		std = math.Sqrt(ss / float64(n-1))
	}

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		StdDev: std,
		Min:    sorted[0],
		Median: median,
		Max:    sorted[n-1],
	}, nil
}

// Pearson returns the correlation coefficient of xs and ys. A column with
// zero variance yields NaN.
func Pearson(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("%w: column lengths differ (%d vs %d)", dynamo.ErrInvalidArgument, len(xs), len(ys))
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("%w: correlation needs at least 2 rows, got %d", dynamo.ErrInvalidArgument, len(xs))
	}

	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var sxy, sxx, syy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN(), nil
	}

	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r)), nil
}

// CorrelationMatrix returns the symmetric matrix of pairwise Pearson
// coefficients. The diagonal is 1 for columns with non-zero variance.
func CorrelationMatrix(columns [][]float64) ([][]float64, error) {
	k := len(columns)
	m := make([][]float64, k)
	for i := range m {
		m[i] = make([]float64, k)
	}

	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			r, err := Pearson(columns[i], columns[j])
			if err != nil {
				return nil, err
			}
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m[i][j] = r
			m[j][i] = r
		}
	}
	return m, nil
}
