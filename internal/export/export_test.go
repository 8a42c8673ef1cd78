package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/region"
)

func sampleRegions(t *testing.T, n int, simulate bool) ([]region.Region, []*growth.Trajectory) {
	t.Helper()
	regions, err := region.NewSeeded(42).Generate(n)
	require.NoError(t, err)
	if !simulate {
		return regions, nil
	}

	grid, err := growth.Linspace(0, 50, 11)
	require.NoError(t, err)

	trajs := make([]*growth.Trajectory, n)
	for i, r := range regions {
		traj, err := growth.Simulate(float64(r.InitialPopulation), r.NetGrowthRate(), growth.DefaultCapacity, grid)
		require.NoError(t, err)
		trajs[i] = traj
		regions[i] = r.WithFinalPopulation(traj.Final())
	}
	return regions, trajs
}

func TestRegionsCSVHeaderAndRows(t *testing.T) {
	regions, _ := sampleRegions(t, 5, true)

	var buf bytes.Buffer
	require.NoError(t, WriteRegionsCSV(&buf, regions))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "region,initial_population,birth_rate,death_rate,migration_rate,final_population", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Region 1,"))
}

func TestRegionsCSVRoundTrip(t *testing.T) {
	regions, _ := sampleRegions(t, 8, true)
	regions = append(regions, region.Region{Name: "Region 9", InitialPopulation: 5000, BirthRate: 0.02})

	var buf bytes.Buffer
	require.NoError(t, WriteRegionsCSV(&buf, regions))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(buf.String()), ",0,0,"))

	back, err := ReadRegionsCSV(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(regions, back, cmp.AllowUnexported(region.Region{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRegionsCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"wrong header", "name,initial_population,birth_rate,death_rate,migration_rate,final_population\n"},
		{"short row", strings.Join(RegionHeader, ",") + "\nRegion 1,5000\n"},
		{"bad int", strings.Join(RegionHeader, ",") + "\nRegion 1,lots,0.1,0.1,0,\n"},
		{"bad final", strings.Join(RegionHeader, ",") + "\nRegion 1,5000,0.1,0.1,0,x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRegionsCSV(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrMalformedCSV)
		})
	}
}

func TestTrajectoriesCSVRoundTrip(t *testing.T) {
	regions, trajs := sampleRegions(t, 3, true)
	names := []string{regions[0].Name, regions[1].Name, regions[2].Name}

	var buf bytes.Buffer
	require.NoError(t, WriteTrajectoriesCSV(&buf, names, trajs))
	assert.Equal(t, 1+3*11, strings.Count(buf.String(), "\n"))

	gotNames, got, err := ReadTrajectoriesCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, names, gotNames)
	require.Len(t, got, 3)
	for i := range trajs {
		assert.Equal(t, trajs[i].Times, got[i].Times)
		assert.Equal(t, trajs[i].Population, got[i].Population)
	}

	err = WriteTrajectoriesCSV(&buf, names[:1], trajs)
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	regions, trajs := sampleRegions(t, 3, true)
	doc := Document{
		ID:           "run_1",
		CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Seed:         42,
		Capacity:     growth.DefaultCapacity,
		Method:       "rk45",
		Grid:         trajs[0].Times,
		Regions:      regions,
		Trajectories: TrajectoriesJSON(regions, trajs),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	assert.Contains(t, buf.String(), `"final_population"`)
	assert.Contains(t, buf.String(), `"region": "Region 2"`)

	back, err := ReadJSON(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(doc, back, cmp.AllowUnexported(region.Region{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = ReadJSON(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := FormatForPath("out/chart.SVG")
	require.NoError(t, err)
	assert.Equal(t, FormatSVG, f)

	f, err = ParseFormat("png")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)

	_, err = FormatForPath("chart.gif")
	assert.Error(t, err)

	k, err := ParseChartKind("scatter")
	require.NoError(t, err)
	assert.Equal(t, ChartScatter, k)
	_, err = ParseChartKind("pie")
	assert.Error(t, err)
}

var pngMagic = []byte("\x89PNG")

func TestRenderCharts(t *testing.T) {
	regions, trajs := sampleRegions(t, 5, true)
	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = r.Name
	}
	bins, err := analysis.Histogram(analysis.InitialPopulations(regions), 4)
	require.NoError(t, err)
	_, cols := analysis.RateColumns(regions)

	render := map[ChartKind]func(*bytes.Buffer, Format) error{
		ChartLine: func(b *bytes.Buffer, f Format) error {
			return RenderTrajectories(b, f, names, trajs, growth.DefaultCapacity)
		},
		ChartBar: func(b *bytes.Buffer, f Format) error {
			return RenderComparison(b, f, regions)
		},
		ChartHistogram: func(b *bytes.Buffer, f Format) error {
			return RenderHistogram(b, f, "initial population", bins)
		},
		ChartScatter: func(b *bytes.Buffer, f Format) error {
			return RenderScatter(b, f, "rates", "birth_rate", "death_rate", cols[0], cols[1])
		},
	}

	for _, kind := range ChartKinds() {
		t.Run(string(kind), func(t *testing.T) {
			var png bytes.Buffer
			require.NoError(t, render[kind](&png, FormatPNG))
			assert.True(t, bytes.HasPrefix(png.Bytes(), pngMagic))

			var svg bytes.Buffer
			require.NoError(t, render[kind](&svg, FormatSVG))
			assert.Contains(t, svg.String(), "<svg")
		})
	}
}

func TestRenderFlatTrajectory(t *testing.T) {
	traj, err := growth.Simulate(50000, 0, growth.DefaultCapacity, []float64{0, 10, 20})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTrajectories(&buf, FormatPNG, []string{"flat"}, []*growth.Trajectory{traj}, 0))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderTrajectories(&buf, FormatPNG, nil, nil, 1))
	assert.Error(t, RenderHistogram(&buf, FormatPNG, "x", nil))
	assert.Error(t, RenderScatter(&buf, FormatPNG, "x", "a", "b", []float64{1}, nil))

	unsimulated, _ := sampleRegions(t, 3, false)
	assert.Error(t, RenderComparison(&buf, FormatPNG, unsimulated))
}
