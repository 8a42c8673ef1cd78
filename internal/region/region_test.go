package region

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCountAndNames(t *testing.T) {
	g := NewSeeded(42)

	regions, err := g.Generate(10)
	require.NoError(t, err)
	require.Len(t, regions, 10)

	for i, r := range regions {
		assert.Equal(t, "Region "+strconv.Itoa(i+1), r.Name)
		_, ok := r.FinalPopulation()
		assert.False(t, ok, "%s should not have a final population", r.Name)
	}
}

func TestGenerateWithinDefaultBounds(t *testing.T) {
	g := NewSeeded(7)
	b := DefaultBounds()

	regions, err := g.Generate(2000)
	require.NoError(t, err)

	for _, r := range regions {
		assert.GreaterOrEqual(t, r.InitialPopulation, 5000)
		assert.Less(t, r.InitialPopulation, 100000)
		assert.True(t, b.BirthRate.Contains(r.BirthRate), "birth rate %v", r.BirthRate)
		assert.True(t, b.DeathRate.Contains(r.DeathRate), "death rate %v", r.DeathRate)
		assert.True(t, b.MigrationRate.Contains(r.MigrationRate), "migration rate %v", r.MigrationRate)
	}
}

func TestGenerateReproducible(t *testing.T) {
	a, err := NewSeeded(42).Generate(25)
	require.NoError(t, err)
	b, err := NewSeeded(42).Generate(25)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewSeeded(43).Generate(25)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateRejectsNonPositiveCount(t *testing.T) {
	g := NewSeeded(1)
	for _, n := range []int{0, -1, -100} {
		_, err := g.Generate(n)
		assert.True(t, errors.Is(err, dynamo.ErrInvalidArgument), "n=%d: %v", n, err)
	}
}

func TestNewGeneratorNilRNG(t *testing.T) {
	_, err := NewGenerator(nil, DefaultBounds())
	assert.ErrorIs(t, err, dynamo.ErrInvalidArgument)
}

func TestCustomBounds(t *testing.T) {
	b := Bounds{
		Population:    Range{Min: 10, Max: 12},
		BirthRate:     Range{Min: 0.1, Max: 0.2},
		DeathRate:     Range{Min: 0.0, Max: 0.01},
		MigrationRate: Range{Min: 0, Max: 1e-9},
	}
	g, err := NewGenerator(rand.New(rand.NewSource(3)), b)
	require.NoError(t, err)

	regions, err := g.Generate(500)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, r := range regions {
		seen[r.InitialPopulation] = true
		assert.True(t, b.BirthRate.Contains(r.BirthRate))
		assert.True(t, b.DeathRate.Contains(r.DeathRate))
		assert.Greater(t, r.NetGrowthRate(), 0.0)
	}
	assert.Equal(t, map[int]bool{10: true, 11: true}, seen)
}

func TestBoundsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Bounds)
	}{
		{"empty birth range", func(b *Bounds) { b.BirthRate = Range{Min: 0.05, Max: 0.05} }},
		{"inverted death range", func(b *Bounds) { b.DeathRate = Range{Min: 0.03, Max: 0.005} }},
		{"zero population", func(b *Bounds) { b.Population.Min = 0 }},
		{"no integer population", func(b *Bounds) { b.Population = Range{Min: 1.2, Max: 1.8} }},
		{"huge population", func(b *Bounds) { b.Population.Max = 1e12 }},
	}

	require.NoError(t, DefaultBounds().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := DefaultBounds()
			tt.mutate(&b)
			assert.ErrorIs(t, b.Validate(), dynamo.ErrInvalidArgument)

			_, err := NewGenerator(rand.New(rand.NewSource(1)), b)
			assert.ErrorIs(t, err, dynamo.ErrInvalidArgument)
		})
	}
}

func TestWithFinalPopulationCopies(t *testing.T) {
	orig := Region{Name: "Region 1", InitialPopulation: 5000, BirthRate: 0.02, DeathRate: 0.01}
	updated := orig.WithFinalPopulation(12345.5)

	_, ok := orig.FinalPopulation()
	assert.False(t, ok)

	v, ok := updated.FinalPopulation()
	require.True(t, ok)
	assert.Equal(t, 12345.5, v)
	assert.Equal(t, orig.Name, updated.Name)
	assert.InDelta(t, 0.01, updated.NetGrowthRate(), 1e-15)
}

func TestRegionJSON(t *testing.T) {
	r := Region{Name: "Region 3", InitialPopulation: 7000, BirthRate: 0.03, DeathRate: 0.01, MigrationRate: -0.005}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "final_population")

	var back Region
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)

	withFinal := r.WithFinalPopulation(9000)
	data, err = json.Marshal(withFinal)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"final_population":9000`)

	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, withFinal, back)
}
