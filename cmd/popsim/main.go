package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/popsim/internal/config"
	"github.com/san-kum/popsim/internal/export"
	"github.com/san-kum/popsim/internal/integrators"
	"github.com/san-kum/popsim/internal/metrics"
	"github.com/san-kum/popsim/internal/observability"
	"github.com/san-kum/popsim/internal/storage"
	"github.com/san-kum/popsim/internal/viz"
)

var (
	dataDir   string
	storeKind string
	logLevel  string
	logFormat string

	regions     int
	capacity    float64
	horizon     float64
	points      int
	seed        int64
	method      string
	tolerance   float64
	workers     int
	maxRejects  int
	minDt       float64
	doubling    bool
	configFile  string
	preset      string
	metricsFile string
	noStore     bool

	sweepCapacities []float64
	sweepTolerances []float64
	sweepSeeds      []int
	sweepMetric     string
	maximize        bool

	outPath      string
	trajectories bool
	chartKind    string
	bins         int
	theme        string

	logger = slog.Default()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "popsim",
		Short:         "synthetic regional population growth simulator",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lc := observability.LogConfig{Level: logLevel, Format: logFormat}
			if err := observability.ValidateLogConfig(lc); err != nil {
				return err
			}
			logger = observability.NewLogger(lc, os.Stderr)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".popsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", storage.KindFile, "run store backend (file|sqlite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text|json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "generate regions and simulate their growth",
		Args:  cobra.NoArgs,
		RunE:  runPipeline,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	runCmd.Flags().BoolVar(&noStore, "no-store", false, "do not save the run")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run the pipeline over a parameter grid and rank the results",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addConfigFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&sweepCapacities, "capacities", nil, "carrying capacities to sweep")
	sweepCmd.Flags().Float64SliceVar(&sweepTolerances, "tolerances", nil, "solver tolerances to sweep")
	sweepCmd.Flags().IntSliceVar(&sweepSeeds, "seeds", nil, "random seeds to sweep")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", metrics.NameCapacityFraction, "trajectory metric to score by")
	sweepCmd.Flags().BoolVar(&maximize, "maximize", false, "rank by highest score instead of lowest")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run]",
		Short: "print a run's region table",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run]",
		Short: "plot a run's trajectories in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	statsCmd := &cobra.Command{
		Use:   "stats [run]",
		Short: "summary statistics, rate correlations and histogram",
		Args:  cobra.MaximumNArgs(1),
		RunE:  statsRun,
	}
	statsCmd.Flags().IntVar(&bins, "bins", 8, "histogram bins")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run]",
		Short: "export run data to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	exportCSVCmd.Flags().BoolVar(&trajectories, "trajectories", false, "export trajectories instead of regions")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run]",
		Short: "export run data to JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	kinds := make([]string, 0, len(export.ChartKinds()))
	for _, k := range export.ChartKinds() {
		kinds = append(kinds, string(k))
	}
	chartCmd := &cobra.Command{
		Use:   "chart [run]",
		Short: "render a PNG or SVG chart",
		Args:  cobra.MaximumNArgs(1),
		RunE:  renderChart,
	}
	chartCmd.Flags().StringVar(&chartKind, "kind", string(export.ChartLine), "chart kind ("+strings.Join(kinds, "|")+")")
	chartCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, .png or .svg")
	chartCmd.Flags().IntVar(&bins, "bins", 8, "histogram bins")
	_ = chartCmd.MarkFlagRequired("out")

	viewCmd := &cobra.Command{
		Use:   "view [run]",
		Short: "browse a run interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  viewRun,
	}
	viewCmd.Flags().StringVar(&theme, "theme", viz.Themes[0].Name, "color theme ("+strings.Join(viz.ThemeNames(), "|")+")")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %-10s %s\n", p, config.PresetDescription(p))
			}
		},
	}

	rootCmd.AddCommand(runCmd, sweepCmd, listCmd, showCmd, plotCmd, statsCmd, exportCSVCmd, exportJSONCmd, chartCmd, viewCmd, presetsCmd)
	return rootCmd
}

// addConfigFlags registers the pipeline configuration flags shared by run
// and sweep.
func addConfigFlags(c *cobra.Command) {
	defaults := config.DefaultConfig()
	c.Flags().IntVar(&regions, "regions", defaults.Regions, "number of regions to generate")
	c.Flags().Float64Var(&capacity, "capacity", defaults.Capacity, "carrying capacity K")
	c.Flags().Float64Var(&horizon, "horizon", defaults.Horizon, "simulated time span")
	c.Flags().IntVar(&points, "points", defaults.Points, "time grid points")
	c.Flags().Int64Var(&seed, "seed", defaults.Seed, "random seed")
	c.Flags().StringVar(&method, "method", defaults.Method,
		"integration method ("+strings.Join(integrators.Names(), "|")+")")
	c.Flags().Float64Var(&tolerance, "tol", defaults.Tolerance, "adaptive error tolerance")
	c.Flags().IntVar(&workers, "workers", defaults.Workers, "parallel simulations")
	c.Flags().IntVar(&maxRejects, "max-rejections", defaults.MaxRejections, "consecutive rejected steps before a run is unstable")
	c.Flags().Float64Var(&minDt, "min-dt", defaults.MinDt, "smallest adaptive step")
	c.Flags().BoolVar(&doubling, "step-doubling", false, "adaptive step doubling for rk4 and euler")
	c.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	c.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}
