package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/san-kum/popsim/internal/analysis"
	"github.com/san-kum/popsim/internal/config"
	"github.com/san-kum/popsim/internal/experiment"
	"github.com/san-kum/popsim/internal/export"
	"github.com/san-kum/popsim/internal/observability"
	"github.com/san-kum/popsim/internal/optim"
	"github.com/san-kum/popsim/internal/region"
	"github.com/san-kum/popsim/internal/storage"
	"github.com/san-kum/popsim/internal/viz"
)

// loadConfig layers the preset, the config file and any explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}
	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ec, err := cfg.ExperimentConfig()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	runner, err := experiment.NewRunner(ec, logger, observability.NewMetrics(reg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := runner.Run(ctx)
	if metricsFile != "" {
		if werr := prometheus.WriteToTextfile(metricsFile, reg); werr != nil {
			logger.Warn("write metrics", "path", metricsFile, "error", werr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Print(viz.RegionTable(res.Regions, res.Trajectories))
	fmt.Printf("\n%d regions, method %s, %s\n", len(res.Regions), ec.Method, res.Duration.Round(time.Millisecond))

	if noStore {
		return nil
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Save(ctx, storage.NewRun(res))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	fmt.Printf("saved: %s\n", id)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	base, err := cfg.ExperimentConfig()
	if err != nil {
		return err
	}

	var axes []optim.Axis
	if len(sweepCapacities) > 0 {
		axes = append(axes, optim.Axis{Name: optim.ParamCapacity, Values: sweepCapacities})
	}
	if len(sweepTolerances) > 0 {
		axes = append(axes, optim.Axis{Name: optim.ParamTolerance, Values: sweepTolerances})
	}
	if len(sweepSeeds) > 0 {
		values := make([]float64, len(sweepSeeds))
		for i, s := range sweepSeeds {
			values[i] = float64(s)
		}
		axes = append(axes, optim.Axis{Name: optim.ParamSeed, Values: values})
	}
	if len(axes) == 0 {
		return fmt.Errorf("nothing to sweep: set --capacities, --tolerances or --seeds")
	}

	gs, err := optim.NewGridSearch(axes...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger.Info("sweep started", "points", gs.Size(), "metric", sweepMetric)
	obj := optim.ExperimentObjective(base, sweepMetric, maximize, logger, observability.NewMetrics(nil))
	results, best, err := gs.Search(ctx, obj)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(axes)+1)
	for _, a := range axes {
		header = append(header, strings.ToUpper(a.Name))
	}
	fmt.Fprintln(w, strings.Join(append(header, strings.ToUpper(sweepMetric)), "\t")+"\t")
	for i, p := range results {
		row := make([]string, 0, len(axes)+1)
		for _, a := range axes {
			row = append(row, fmt.Sprintf("%g", p.Params[a.Name]))
		}
		switch {
		case p.Err != nil:
			row = append(row, "error: "+p.Err.Error())
		case maximize:
			row = append(row, fmt.Sprintf("%.6g", -p.Score))
		default:
			row = append(row, fmt.Sprintf("%.6g", p.Score))
		}
		if i == best {
			row[len(row)-1] += "  *"
		}
		fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	return w.Flush()
}

// applyFlags copies explicitly set run flags over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("regions") {
		cfg.Regions = regions
	}
	if f.Changed("capacity") {
		cfg.Capacity = capacity
	}
	if f.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if f.Changed("points") {
		cfg.Points = points
	}
	if f.Changed("seed") {
		cfg.Seed = seed
	}
	if f.Changed("method") {
		cfg.Method = method
	}
	if f.Changed("tol") {
		cfg.Tolerance = tolerance
	}
	if f.Changed("workers") {
		cfg.Workers = workers
	}
	if f.Changed("max-rejections") {
		cfg.MaxRejections = maxRejects
	}
	if f.Changed("min-dt") {
		cfg.MinDt = minDt
	}
	if f.Changed("step-doubling") {
		cfg.StepDoubling = doubling
	}
}

func openStore() (storage.Store, error) {
	return storage.Open(storeKind, dataDir, clockwork.NewRealClock())
}

// loadRun resolves the optional run reference argument, defaulting to the
// newest run.
func loadRun(ctx context.Context, args []string) (*storage.Run, error) {
	ref := "latest"
	if len(args) > 0 {
		ref = args[0]
	}
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	id, err := storage.Resolve(ctx, st, ref)
	if err != nil {
		return nil, err
	}
	return st.Load(ctx, id)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tREGIONS\tSEED\tMETHOD\tCAPACITY")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%.0f\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Regions, r.Seed, r.Method, r.Capacity)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args)
	if err != nil {
		return err
	}

	m := run.Meta
	fmt.Printf("run %s\n", m.ID)
	fmt.Printf("created %s  seed %d  method %s  tol %g  capacity %.0f\n",
		m.CreatedAt.Local().Format("2006-01-02 15:04:05"), m.Seed, m.Method, m.Tolerance, m.Capacity)
	if len(m.Grid) > 0 {
		fmt.Printf("grid [%g, %g] with %d points\n\n", m.Grid[0], m.Grid[len(m.Grid)-1], len(m.Grid))
	}
	fmt.Print(viz.RegionTable(run.Regions, run.Trajectories))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args)
	if err != nil {
		return err
	}
	caption := fmt.Sprintf("population, %d regions (K=%.0f)", len(run.Regions), run.Meta.Capacity)
	fmt.Println(viz.PlotTrajectories(run.Trajectories, caption, 15, 80))
	return nil
}

func statsRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "COLUMN\tCOUNT\tMEAN\tSTDDEV\tMIN\tMEDIAN\tMAX\t")
	names, cols := analysis.RateColumns(run.Regions)
	names = append([]string{"initial_population", "final_population"}, names...)
	cols = append([][]float64{analysis.InitialPopulations(run.Regions), analysis.FinalPopulations(run.Regions)}, cols...)
	for i, col := range cols {
		s, err := analysis.Describe(col)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t\n",
			names[i], s.Count, s.Mean, s.StdDev, s.Min, s.Median, s.Max)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	rateNames, rateCols := analysis.RateColumns(run.Regions)
	if len(run.Regions) > 1 {
		corr, err := analysis.CorrelationMatrix(rateCols)
		if err != nil {
			return err
		}
		fmt.Printf("\ncorrelation\n%s", analysis.FormatMatrix(rateNames, corr))
	}

	final := analysis.FinalPopulations(run.Regions)
	if len(final) == 0 {
		return nil
	}

	fmt.Println("\nchange")
	if err := printChanges(os.Stdout, analysis.Compare(run.Regions)); err != nil {
		return err
	}
	hist, err := analysis.Histogram(final, bins)
	if err != nil {
		return err
	}
	fmt.Println("\nfinal population")
	printHistogram(os.Stdout, hist)
	return nil
}

// printChanges lists regions from largest relative gain to largest loss.
func printChanges(w io.Writer, changes []analysis.Change) error {
	sorted := append([]analysis.Change(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Percent > sorted[j].Percent })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "REGION\tINITIAL\tFINAL\tDELTA\tCHANGE\t")
	for _, c := range sorted {
		fmt.Fprintf(tw, "%s\t%.0f\t%.1f\t%+.1f\t%+.2f%%\t\n", c.Region, c.Initial, c.Final, c.Delta, c.Percent)
	}
	return tw.Flush()
}

func printHistogram(w io.Writer, hist []analysis.Bin) {
	top := 0
	for _, b := range hist {
		top = max(top, b.Count)
	}
	for _, b := range hist {
		width := 0
		if top > 0 {
			width = int(math.Round(float64(b.Count) / float64(top) * 40))
		}
		fmt.Fprintf(w, "  %-22s %s %d\n", b.Label(), strings.Repeat("█", width), b.Count)
	}
}

// output opens the --out path, or stdout when none was given.
func output() (io.Writer, func() error, error) {
	if outPath == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args)
	if err != nil {
		return err
	}
	w, closeFn, err := output()
	if err != nil {
		return err
	}
	if trajectories {
		err = export.WriteTrajectoriesCSV(w, run.Names(), run.Trajectories)
	} else {
		err = export.WriteRegionsCSV(w, run.Regions)
	}
	if cerr := closeFn(); err == nil {
		err = cerr
	}
	if err == nil && outPath != "" {
		fmt.Printf("exported to %s\n", outPath)
	}
	return err
}

func exportJSON(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args)
	if err != nil {
		return err
	}
	doc := export.Document{
		ID:           run.Meta.ID,
		CreatedAt:    run.Meta.CreatedAt,
		Seed:         run.Meta.Seed,
		Capacity:     run.Meta.Capacity,
		Method:       run.Meta.Method,
		Grid:         run.Meta.Grid,
		Regions:      run.Regions,
		Trajectories: export.TrajectoriesJSON(run.Regions, run.Trajectories),
	}

	w, closeFn, err := output()
	if err != nil {
		return err
	}
	err = export.WriteJSON(w, doc)
	if cerr := closeFn(); err == nil {
		err = cerr
	}
	if err == nil && outPath != "" {
		fmt.Printf("exported to %s\n", outPath)
	}
	return err
}

func renderChart(cmd *cobra.Command, args []string) error {
	kind, err := export.ParseChartKind(chartKind)
	if err != nil {
		return err
	}
	format, err := export.FormatForPath(outPath)
	if err != nil {
		return err
	}
	run, err := loadRun(cmd.Context(), args)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	switch kind {
	case export.ChartLine:
		err = export.RenderTrajectories(f, format, run.Names(), run.Trajectories, run.Meta.Capacity)
	case export.ChartBar:
		err = export.RenderComparison(f, format, run.Regions)
	case export.ChartHistogram:
		var hist []analysis.Bin
		hist, err = analysis.Histogram(analysis.FinalPopulations(run.Regions), bins)
		if err == nil {
			err = export.RenderHistogram(f, format, "Final population", hist)
		}
	case export.ChartScatter:
		xs, ys := scatterSeries(run.Regions)
		err = export.RenderScatter(f, format, "Net growth vs final population",
			"net growth rate", "final population", xs, ys)
	}
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("chart written to %s\n", outPath)
	return nil
}

// scatterSeries pairs net growth rate with final population for the regions
// that were simulated.
func scatterSeries(regions []region.Region) ([]float64, []float64) {
	sim := analysis.Simulated(regions)
	_, cols := analysis.RateColumns(sim)
	return cols[3], analysis.FinalPopulations(sim)
}

func viewRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(cmd.Context(), args)
	if err != nil {
		return err
	}
	m := viz.NewViewer(run.Meta.ID, run.Regions, run.Trajectories, run.Meta.Capacity).WithTheme(theme)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
