package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
)

// Bin covers [Lo, Hi). The last bin of a histogram also includes Hi.
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

func (b Bin) Label() string {
	return fmt.Sprintf("%.4g-%.4g", b.Lo, b.Hi)
}

// Histogram splits the range of values into n equal-width bins. When every
// value is equal the single occupied bin is centred on it with width 1.
func Histogram(values []float64, n int) ([]Bin, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: bin count must be positive, got %d", dynamo.ErrInvalidArgument, n)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values to bin", dynamo.ErrInvalidArgument)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: histogram values must be finite", dynamo.ErrInvalidArgument)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].Count++
	}
	return bins, nil
}
