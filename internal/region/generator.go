package region

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/popsim/internal/dynamo"
)

// Generator draws regions from a caller-owned random source. It is not safe
// for concurrent use because *rand.Rand is not.
type Generator struct {
	rng    *rand.Rand
	bounds Bounds
}

func NewGenerator(rng *rand.Rand, bounds Bounds) (*Generator, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is nil", dynamo.ErrInvalidArgument)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return &Generator{rng: rng, bounds: bounds}, nil
}

// NewSeeded is a Generator over rand.NewSource(seed) with the default bounds.
func NewSeeded(seed int64) *Generator {
	g, err := NewGenerator(rand.New(rand.NewSource(seed)), DefaultBounds())
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Generator) Bounds() Bounds { return g.bounds }

// Generate returns n regions named "Region 1" through "Region n". Fields are
// drawn in a fixed order so output depends only on the seed and bounds.
func (g *Generator) Generate(n int) ([]Region, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: region count must be positive, got %d", dynamo.ErrInvalidArgument, n)
	}

	regions := make([]Region, n)
	for i := range regions {
		regions[i] = Region{
			Name:              fmt.Sprintf("Region %d", i+1),
			InitialPopulation: g.intIn(g.bounds.Population),
			BirthRate:         g.floatIn(g.bounds.BirthRate),
			DeathRate:         g.floatIn(g.bounds.DeathRate),
			MigrationRate:     g.floatIn(g.bounds.MigrationRate),
		}
	}
	return regions, nil
}

// intIn samples an integer uniformly from [ceil(min), ceil(max)).
func (g *Generator) intIn(r Range) int {
	lo := int(math.Ceil(r.Min))
	hi := int(math.Ceil(r.Max))
	return lo + g.rng.Intn(hi-lo)
}

func (g *Generator) floatIn(r Range) float64 {
	v := r.Min + g.rng.Float64()*(r.Max-r.Min)
	// Rounding can land exactly on Max for some spans.
	if v >= r.Max {
		v = math.Nextafter(r.Max, r.Min)
	}
	return v
}
