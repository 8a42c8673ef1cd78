package experiment

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/observability"
	"github.com/san-kum/popsim/internal/region"
)

func newRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, observability.Discard(), nil)
	require.NoError(t, err)
	return r
}

func TestRunAttachesFinalPopulation(t *testing.T) {
	cfg := DefaultConfig()
	res, err := newRunner(t, cfg).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Regions, 5)
	require.Len(t, res.Trajectories, 5)
	assert.Equal(t, cfg.Grid, res.Grid)

	for i, reg := range res.Regions {
		final, ok := reg.FinalPopulation()
		require.True(t, ok, reg.Name)

		// Re-running the row on its own inputs reproduces the attached value.
		traj, err := growth.Simulate(float64(reg.InitialPopulation), reg.NetGrowthRate(), cfg.Capacity, cfg.Grid)
		require.NoError(t, err)
		assert.Equal(t, traj.Final(), final, reg.Name)
		assert.Equal(t, res.Trajectories[i].Final(), final, reg.Name)
	}
}

func TestRunMatchesGenerator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 99

	res, err := newRunner(t, cfg).Run(context.Background())
	require.NoError(t, err)

	plain, err := region.NewSeeded(99).Generate(cfg.Regions)
	require.NoError(t, err)

	for i := range plain {
		assert.Equal(t, plain[i].Name, res.Regions[i].Name)
		assert.Equal(t, plain[i].InitialPopulation, res.Regions[i].InitialPopulation)
		assert.Equal(t, plain[i].BirthRate, res.Regions[i].BirthRate)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Regions = 40

	seq, err := newRunner(t, cfg).Run(context.Background())
	require.NoError(t, err)

	cfg.Workers = 8
	par, err := newRunner(t, cfg).Run(context.Background())
	require.NoError(t, err)

	opt := cmp.AllowUnexported(region.Region{})
	if diff := cmp.Diff(seq.Regions, par.Regions, opt); diff != "" {
		t.Errorf("parallel regions differ (-seq +par):\n%s", diff)
	}
	if diff := cmp.Diff(seq.Trajectories, par.Trajectories); diff != "" {
		t.Errorf("parallel trajectories differ (-seq +par):\n%s", diff)
	}
}

func TestSimulateRegionsLeavesInputUntouched(t *testing.T) {
	regions, err := region.NewSeeded(5).Generate(3)
	require.NoError(t, err)

	out, _, err := newRunner(t, DefaultConfig()).SimulateRegions(context.Background(), regions)
	require.NoError(t, err)

	for i := range regions {
		_, ok := regions[i].FinalPopulation()
		assert.False(t, ok)
		_, ok = out[i].FinalPopulation()
		assert.True(t, ok)
	}
}

func TestRunWrapsRegionFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0

	_, err := newRunner(t, cfg).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dynamo.ErrInvalidArgument)
	assert.True(t, strings.HasPrefix(err.Error(), "Region 1: "), err.Error())
}

func TestNewRunnerValidates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no regions", func(c *Config) { c.Regions = 0 }},
		{"empty grid", func(c *Config) { c.Grid = nil }},
		{"bad bounds", func(c *Config) { c.Bounds.BirthRate = region.Range{Min: 1, Max: 0} }},
		{"bad tolerance", func(c *Config) { c.Tolerance = -1 }},
		{"negative min dt", func(c *Config) { c.MinDt = -1 }},
		{"negative max rejections", func(c *Config) { c.MaxRejections = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewRunner(cfg, nil, nil)
			assert.ErrorIs(t, err, dynamo.ErrInvalidArgument)
		})
	}

	cfg := DefaultConfig()
	cfg.Method = "verlet"
	_, err := NewRunner(cfg, nil, nil)
	assert.ErrorIs(t, err, dynamo.ErrUnknownMethod)
}

func TestRunStepDoubling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = "rk4"
	cfg.StepDoubling = true
	cfg.MaxRejections = 20
	cfg.MinDt = 1e-8

	res, err := newRunner(t, cfg).Run(context.Background())
	require.NoError(t, err)

	ref, err := newRunner(t, DefaultConfig()).Run(context.Background())
	require.NoError(t, err)

	for i, traj := range res.Trajectories {
		// Fixed rk4 takes 20 substeps per interval; doubling adapts.
		assert.NotEqual(t, 20*(len(cfg.Grid)-1), traj.Steps)
		assert.InEpsilon(t, ref.Trajectories[i].Final(), traj.Final(), 1e-5, res.Regions[i].Name)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(t, DefaultConfig()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	var logs bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info"}, &logs)

	r, err := NewRunner(DefaultConfig(), logger, m)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RegionsGenerated))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Simulations.WithLabelValues("rk45", observability.OutcomeSuccess)))
	assert.Contains(t, logs.String(), "pipeline complete")
}
