package export

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/region"
)

type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	}
	return "", fmt.Errorf("export: unknown chart format %q (want png or svg)", s)
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

func (f Format) renderer() chart.RendererProvider {
	if f == FormatSVG {
		return chart.SVG
	}
	return chart.PNG
}

type ChartKind string

const (
	ChartLine      ChartKind = "line"
	ChartBar       ChartKind = "bar"
	ChartHistogram ChartKind = "histogram"
	ChartScatter   ChartKind = "scatter"
)

func ChartKinds() []ChartKind {
	return []ChartKind{ChartLine, ChartBar, ChartHistogram, ChartScatter}
}

func ParseChartKind(s string) (ChartKind, error) {
	for _, k := range ChartKinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("export: unknown chart kind %q", s)
}

const (
	chartWidth  = 1024
	chartHeight = 600
)

var (
	colorInitial = drawing.ColorFromHex("4e79a7")
	colorFinal   = drawing.ColorFromHex("59a14f")
)

func intFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

func rateFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.4f", f)
	}
	return ""
}

// paddedRange returns an axis range over [lo, hi], widened when the span is
// zero. go-chart refuses to render a zero-width range.
func paddedRange(lo, hi float64) *chart.ContinuousRange {
	if hi <= lo {
		pad := math.Max(math.Abs(lo)*0.05, 1)
		return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func extent(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// RenderTrajectories draws one line per region plus the carrying capacity.
func RenderTrajectories(w io.Writer, f Format, names []string, trajs []*growth.Trajectory, capacity float64) error {
	if len(trajs) == 0 {
		return fmt.Errorf("export: no trajectories to draw")
	}

	series := make([]chart.Series, 0, len(trajs)+1)
	yLo, yHi := math.Inf(1), math.Inf(-1)
	xLo, xHi := math.Inf(1), math.Inf(-1)

	for i, t := range trajs {
		name := fmt.Sprintf("Region %d", i+1)
		if i < len(names) {
			name = names[i]
		}
		lo, hi := extent(t.Population)
		yLo, yHi = math.Min(yLo, lo), math.Max(yHi, hi)
		lo, hi = extent(t.Times)
		xLo, xHi = math.Min(xLo, lo), math.Max(xHi, hi)

		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: t.Times,
			YValues: t.Population,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
		})
	}

	if capacity > 0 {
		yHi = math.Max(yHi, capacity)
		series = append(series, chart.ContinuousSeries{
			Name:    "capacity",
			XValues: []float64{xLo, xHi},
			YValues: []float64{capacity, capacity},
			Style: chart.Style{
				StrokeColor:     chart.ColorAlternateGray,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5, 5},
			},
		})
	}

	ch := chart.Chart{
		Title:      "Population over time",
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: "time", Range: paddedRange(xLo, xHi)},
		YAxis:      chart.YAxis{Name: "population", Range: paddedRange(0, yHi*1.05), ValueFormatter: intFormatter},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(f.renderer(), w)
}

// RenderComparison draws initial and final population side by side for each
// simulated region.
func RenderComparison(w io.Writer, f Format, regions []region.Region) error {
	bars := make([]chart.Value, 0, 2*len(regions))
	top := 0.0

	for i, r := range regions {
		final, ok := r.FinalPopulation()
		if !ok {
			continue
		}
		p0 := float64(r.InitialPopulation)
		top = math.Max(top, math.Max(p0, final))
		bars = append(bars,
			chart.Value{
				Label: fmt.Sprintf("%d start", i+1),
				Value: p0,
				Style: chart.Style{FillColor: colorInitial, StrokeColor: colorInitial},
			},
			chart.Value{
				Label: fmt.Sprintf("%d end", i+1),
				Value: final,
				Style: chart.Style{FillColor: colorFinal, StrokeColor: colorFinal},
			},
		)
	}
	if len(bars) == 0 {
		return fmt.Errorf("export: no simulated regions to compare")
	}

	return renderBars(w, f, "Initial vs final population", bars, top)
}

// RenderHistogram draws precomputed bins as bars.
func RenderHistogram(w io.Writer, f Format, title string, bins []analysis.Bin) error {
	if len(bins) == 0 {
		return fmt.Errorf("export: no bins to draw")
	}

	bars := make([]chart.Value, len(bins))
	top := 0.0
	for i, b := range bins {
		top = math.Max(top, float64(b.Count))
		bars[i] = chart.Value{
			Label: b.Label(),
			Value: float64(b.Count),
			Style: chart.Style{FillColor: colorInitial, StrokeColor: colorInitial},
		}
	}
	return renderBars(w, f, title, bars, top)
}

func renderBars(w io.Writer, f Format, title string, bars []chart.Value, top float64) error {
	if top <= 0 {
		top = 1
	}

	const barWidth, spacing = 40, 12
	width := max(chartWidth, len(bars)*(barWidth+spacing)+160)

	bc := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: spacing,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: intFormatter,
		},
		Bars: bars,
	}
	return bc.Render(f.renderer(), w)
}

// RenderScatter plots xs against ys as unconnected dots.
func RenderScatter(w io.Writer, f Format, title, xName, yName string, xs, ys []float64) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return fmt.Errorf("export: scatter needs matching non-empty columns (%d vs %d)", len(xs), len(ys))
	}

	xLo, xHi := extent(xs)
	yLo, yHi := extent(ys)

	ch := chart.Chart{
		Title:      title,
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: xName, Range: paddedRange(xLo, xHi), ValueFormatter: rateFormatter},
		YAxis:      chart.YAxis{Name: yName, Range: paddedRange(yLo, yHi), ValueFormatter: rateFormatter},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    yName,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    5,
					DotColor:    colorInitial,
				},
			},
		},
	}
	return ch.Render(f.renderer(), w)
}
