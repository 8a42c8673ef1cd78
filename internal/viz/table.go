package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/region"
)

const sparkWidth = 16

var tableColumns = []struct {
	title string
	width int
}{
	{"region", 12},
	{"initial", 9},
	{"birth", 8},
	{"death", 8},
	{"migration", 10},
	{"net r", 8},
	{"final", 11},
	{"change", 9},
}

// RegionTable renders regions as an aligned text table. When trajs is
// index-aligned with regions a sparkline column is added.
func RegionTable(regions []region.Region, trajs []*growth.Trajectory) string {
	withTrend := len(trajs) == len(regions) && len(trajs) > 0

	var header strings.Builder
	for _, c := range tableColumns {
		fmt.Fprintf(&header, "%-*s", c.width, c.title)
	}
	if withTrend {
		header.WriteString("trend")
	}

	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render(strings.TrimRight(header.String(), " ")))
	sb.WriteByte('\n')

	for i, r := range regions {
		fmt.Fprintf(&sb, "%-12s%-9d%-8.4f%-8.4f%-10.4f%-8.4f",
			r.Name, r.InitialPopulation, r.BirthRate, r.DeathRate, r.MigrationRate, r.NetGrowthRate())

		final, ok := r.FinalPopulation()
		if !ok {
			fmt.Fprintf(&sb, "%-11s%-9s", "-", "-")
		} else {
			fmt.Fprintf(&sb, "%-11.1f", final)
			change := 100 * (final - float64(r.InitialPopulation)) / float64(r.InitialPopulation)
			cell := fmt.Sprintf("%-9s", fmt.Sprintf("%+.1f%%", change))
			if change >= 0 {
				sb.WriteString(GrowthUp.Render(cell))
			} else {
				sb.WriteString(GrowthDown.Render(cell))
			}
		}

		if withTrend {
			sb.WriteString(Sparkline(trajs[i].Population, sparkWidth))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue,
	asciigraph.Green,
	asciigraph.Red,
	asciigraph.Yellow,
	asciigraph.Cyan,
	asciigraph.Magenta,
}

// PlotTrajectories draws every trajectory on one asciigraph chart.
func PlotTrajectories(trajs []*growth.Trajectory, caption string, height, width int) string {
	if len(trajs) == 0 {
		return ""
	}

	data := make([][]float64, len(trajs))
	colors := make([]asciigraph.AnsiColor, len(trajs))
	for i, t := range trajs {
		data[i] = t.Population
		colors[i] = seriesColors[i%len(seriesColors)]
	}

	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
	)
}
