package region

import (
	"fmt"
	"math"

	"github.com/san-kum/popsim/internal/dynamo"
)

// Range is a half-open interval [Min, Max).
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v < r.Max
}

func (r Range) validate(name string) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("%w: %s range must be finite", dynamo.ErrInvalidArgument, name)
	}
	if r.Min >= r.Max {
		return fmt.Errorf("%w: %s range [%g, %g) is empty", dynamo.ErrInvalidArgument, name, r.Min, r.Max)
	}
	return nil
}

// Bounds are the sampling ranges for each generated field.
type Bounds struct {
	Population    Range `yaml:"population" json:"population"`
	BirthRate     Range `yaml:"birth_rate" json:"birth_rate"`
	DeathRate     Range `yaml:"death_rate" json:"death_rate"`
	MigrationRate Range `yaml:"migration_rate" json:"migration_rate"`
}

func DefaultBounds() Bounds {
	return Bounds{
		Population:    Range{Min: 5000, Max: 100000},
		BirthRate:     Range{Min: 0.01, Max: 0.05},
		DeathRate:     Range{Min: 0.005, Max: 0.03},
		MigrationRate: Range{Min: -0.02, Max: 0.02},
	}
}

func (b Bounds) Validate() error {
	checks := []struct {
		name string
		r    Range
	}{
		{"population", b.Population},
		{"birth_rate", b.BirthRate},
		{"death_rate", b.DeathRate},
		{"migration_rate", b.MigrationRate},
	}
	for _, c := range checks {
		if err := c.r.validate(c.name); err != nil {
			return err
		}
	}

	if b.Population.Min < 1 {
		return fmt.Errorf("%w: population minimum must be at least 1, got %g", dynamo.ErrInvalidArgument, b.Population.Min)
	}
	if math.Ceil(b.Population.Min) >= math.Ceil(b.Population.Max) {
		return fmt.Errorf("%w: population range [%g, %g) holds no integer", dynamo.ErrInvalidArgument, b.Population.Min, b.Population.Max)
	}
	if b.Population.Max > math.MaxInt32 {
		return fmt.Errorf("%w: population maximum %g is too large", dynamo.ErrInvalidArgument, b.Population.Max)
	}
	return nil
}
