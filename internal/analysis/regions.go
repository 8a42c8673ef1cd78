package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/popsim/internal/region"
)

// RateColumns extracts the rate columns used by the correlation view.
func RateColumns(regions []region.Region) ([]string, [][]float64) {
	names := []string{"birth_rate", "death_rate", "migration_rate", "net_growth"}
	cols := make([][]float64, len(names))
	for i := range cols {
		cols[i] = make([]float64, len(regions))
	}
	for i, r := range regions {
		cols[0][i] = r.BirthRate
		cols[1][i] = r.DeathRate
		cols[2][i] = r.MigrationRate
		cols[3][i] = r.NetGrowthRate()
	}
	return names, cols
}

func InitialPopulations(regions []region.Region) []float64 {
	out := make([]float64, len(regions))
	for i, r := range regions {
		out[i] = float64(r.InitialPopulation)
	}
	return out
}

// FinalPopulations returns the attached final values, skipping regions that
// have none.
func FinalPopulations(regions []region.Region) []float64 {
	out := make([]float64, 0, len(regions))
	for _, r := range regions {
		if v, ok := r.FinalPopulation(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Simulated returns the regions that carry a final population, in order.
func Simulated(regions []region.Region) []region.Region {
	out := make([]region.Region, 0, len(regions))
	for _, r := range regions {
		if _, ok := r.FinalPopulation(); ok {
			out = append(out, r)
		}
	}
	return out
}

type Change struct {
	Region  string
	Initial float64
	Final   float64
	Delta   float64
	Percent float64
}

// Compare pairs each simulated region's initial and final population.
// Regions without a final population are skipped.
func Compare(regions []region.Region) []Change {
	out := make([]Change, 0, len(regions))
	for _, r := range regions {
		final, ok := r.FinalPopulation()
		if !ok {
			continue
		}
		p0 := float64(r.InitialPopulation)
		out = append(out, Change{
			Region:  r.Name,
			Initial: p0,
			Final:   final,
			Delta:   final - p0,
			Percent: 100 * (final - p0) / p0,
		})
	}
	return out
}

// FormatMatrix renders a labelled correlation matrix as aligned text.
func FormatMatrix(names []string, m [][]float64) string {
	width := 8
	for _, n := range names {
		width = max(width, len(n)+1)
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width))
	for _, n := range names {
		fmt.Fprintf(&sb, "%*s", width, n)
	}
	sb.WriteByte('\n')

	for i, row := range m {
		fmt.Fprintf(&sb, "%-*s", width, names[i])
		for _, v := range row {
			if math.IsNaN(v) {
				fmt.Fprintf(&sb, "%*s", width, "n/a")
				continue
			}
			fmt.Fprintf(&sb, "%*.3f", width, v)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
