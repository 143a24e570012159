package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/synchro/internal/analysis"
	"github.com/san-kum/synchro/internal/config"
	"github.com/san-kum/synchro/internal/experiment"
	"github.com/san-kum/synchro/internal/export"
	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/logging"
	"github.com/san-kum/synchro/internal/optim"
	"github.com/san-kum/synchro/internal/sim"
	"github.com/san-kum/synchro/internal/storage"
	"github.com/san-kum/synchro/internal/synchro"
	"github.com/san-kum/synchro/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string
	logDir   string

	configFile  string
	preset      string
	dt          float64
	duration    float64
	seed        int64
	integrator  string
	switchAt    float64
	recordEvery int
	params      []string

	// compare
	phase   float64
	sweep   bool
	modes   []string
	asJSON  bool
	compMod string

	// tune
	grid      []string
	seedCount int
	metric    string
	workers   int
	writeTo   string

	// field
	posX       float64
	posY       float64
	sampleRate float64
	gridN      int
	extent     float64
	atTime     float64
	cellSize   int

	// plot / export
	xAxis    string
	yAxis    string
	portrait bool
	section  bool
	outPath  string
	width    int
	height   int
	force    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "synchro",
		Short:        "twin propeller synchrophasing lab",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(dt, tuiLogger(cmd, config.DefaultConfig()))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".synchro", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "write rotated JSON logs to this directory")
	rootCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")

	runCmd := &cobra.Command{
		Use:   "run [mode]",
		Short: "run the twin and store its telemetry",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().Float64Var(&switchAt, "switch-at", 0, "run uncontrolled until this time, then engage the mode")
	runCmd.Flags().IntVar(&recordEvery, "record-every", 1, "keep every Nth sample")
	runCmd.Flags().StringArrayVar(&params, "param", nil, "controller gain override, e.g. --param kp=0.9")

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "compare controller modes against the uncontrolled twin",
		Args:  cobra.NoArgs,
		RunE:  compareModes,
	}
	addSimFlags(compareCmd)
	compareCmd.Flags().StringVar(&compMod, "mode", string(sim.ModeBaseline), "mode engaged after the off phase")
	compareCmd.Flags().Float64Var(&phase, "phase", 30, "seconds per phase in the switch test")
	compareCmd.Flags().BoolVar(&sweep, "sweep", false, "run every mode on its own twin instead of a switch test")
	compareCmd.Flags().StringSliceVar(&modes, "modes", nil, "modes for --sweep (default all)")
	compareCmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	tuneCmd := &cobra.Command{
		Use:   "tune [controller]",
		Short: "grid search controller gains",
		Args:  cobra.ExactArgs(1),
		RunE:  tuneGains,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", nil, "parameter grid, e.g. --grid kp=0.4:1.2:0.2 --grid ki=0.05,0.1")
	tuneCmd.Flags().IntVar(&seedCount, "seeds", 3, "field seeds per trial")
	tuneCmd.Flags().StringVar(&metric, "metric", "mean_speed_error_rpm", "metric to minimise")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "parallel trials (default GOMAXPROCS)")
	tuneCmd.Flags().StringVar(&writeTo, "write", "", "save the config with the best gains to this path")

	fieldCmd := &cobra.Command{
		Use:   "field",
		Short: "inspect the density field",
	}
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "check temporal frequency, spatial wavelength and drift",
		Args:  cobra.NoArgs,
		RunE:  validateField,
	}
	fftCmd := &cobra.Command{
		Use:   "fft",
		Short: "density spectrum at a fixed point",
		Args:  cobra.NoArgs,
		RunE:  fieldSpectrum,
	}
	fftCmd.Flags().Float64Var(&sampleRate, "rate", 30, "sample rate (Hz)")
	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "sample the field on a grid",
		Args:  cobra.NoArgs,
		RunE:  fieldGrid,
	}
	gridCmd.Flags().IntVar(&gridN, "n", 200, "grid points per side")
	gridCmd.Flags().Float64Var(&extent, "extent", 1000, "grid side length (m)")
	gridCmd.Flags().Float64Var(&atTime, "at", 0, "field time (s)")
	gridCmd.Flags().IntVar(&cellSize, "cell", 3, "svg pixels per cell")
	gridCmd.Flags().StringVar(&outPath, "out", "", "write an svg heatmap")
	for _, c := range []*cobra.Command{validateCmd, fftCmd, gridCmd} {
		c.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
		c.Flags().StringVar(&preset, "preset", "", "use preset configuration")
		c.Flags().Int64Var(&seed, "seed", 0, "field seed")
		c.Flags().Float64Var(&posX, "x", 0, "probe x (default main rotor)")
		c.Flags().Float64Var(&posY, "y", 0, "probe y (default main rotor)")
	}
	fftCmd.Flags().Float64Var(&duration, "time", 60, "duration")
	fieldCmd.AddCommand(validateCmd, fftCmd, gridCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run telemetry (latest run by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&portrait, "portrait", false, "add a phase portrait")
	plotCmd.Flags().BoolVar(&section, "section", false, "sample the portrait once per main revolution")
	plotCmd.Flags().StringVar(&xAxis, "x-axis", "phase", "portrait x axis (phase, speed, correction)")
	plotCmd.Flags().StringVar(&yAxis, "y-axis", "speed", "portrait y axis (phase, speed, correction)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(args[0], outPath)
		},
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export run telemetry as an svg chart",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.svg)")
	exportSVGCmd.Flags().IntVar(&width, "width", 900, "image width")
	exportSVGCmd.Flags().IntVar(&height, "height", 600, "image height")

	liveCmd := &cobra.Command{
		Use:   "live [mode]",
		Short: "run the twin with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	liveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	liveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	liveCmd.Flags().Int64Var(&seed, "seed", 0, "field seed")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets, controllers and integrators",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage config files",
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file with defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	configInitCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	configInitCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	configCheckCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "check a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s: ok\n", args[0])
			return nil
		},
	}
	configCmd.AddCommand(configInitCmd, configCheckCmd)

	rootCmd.AddCommand(runCmd, compareCmd, tuneCmd, fieldCmd, listCmd, plotCmd, exportJSONCmd, exportSVGCmd, liveCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Int64Var(&seed, "seed", 0, "field seed (0 keeps the configured seed)")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator for both rotors")
}

// loadConfig layers preset, config file and changed flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Sim.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if flags.Changed("seed") {
		cfg.Sim.Seed = seed
	}
	if flags.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if flags.Changed("switch-at") {
		cfg.Sim.SwitchAt = switchAt
	}
	if flags.Changed("record-every") {
		cfg.Sim.RecordEvery = recordEvery
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = logDir
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Dir, os.Stderr)
}

// tuiLogger keeps stderr clean while the alternate screen is active.
func tuiLogger(cmd *cobra.Command, cfg *config.Config) *logging.Logger {
	level, dir := cfg.Log.Level, cfg.Log.Dir
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	if cmd.Flags().Changed("log-dir") {
		dir = logDir
	}
	if dir == "" {
		return logging.Discard()
	}
	return logging.New(level, dir, nil)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func parseParams(specs []string) (map[string]float64, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(specs))
	for _, spec := range specs {
		name, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("bad param %q: want name=value", spec)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("bad param %q: %w", spec, err)
		}
		out[strings.TrimSpace(name)] = v
	}
	return out, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Sim.Mode = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rc, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	overrides, err := parseParams(params)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	setup := cfg.Setup(log)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := experiment.New(experiment.Config{
		Mode:        rc.Mode,
		Dt:          rc.Dt,
		Duration:    rc.Duration,
		SwitchAt:    rc.SwitchAt,
		Params:      overrides,
		RecordEvery: rc.RecordEvery,
	}, setup, experiment.NewRegistryFromSetup(setup))
	if err := exp.Setup(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	result, err := exp.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Dt:         rc.Dt,
		Duration:   result.Duration,
		SwitchAt:   rc.SwitchAt,
		Integrator: cfg.Sim.Integrator,
		Preset:     preset,
		Field:      setup.Field,
	}
	if _, ok := rc.Mode.Variant(); ok {
		meta.Gains = exp.Twin().Controller(rc.Mode).Gains().Params()
	}
	id, err := st.Save(meta, result)
	if err != nil {
		return err
	}
	log.Info("run stored", "id", id, "steps", result.StepsTaken, "elapsed", elapsed)

	fmt.Printf("run: %s\n", id)
	fmt.Printf("mode: %s  seed: %d  steps: %d  anomalies: %d  (%.2fs wall)\n\n",
		result.Mode, result.Seed, result.StepsTaken, result.Anomalies, elapsed.Seconds())
	return printMetrics(result.Metrics)
}

func printMetrics(m map[string]float64) error {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%.4f\n", name, m[name])
	}
	return w.Flush()
}

func compareModes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cfg)
	tester := experiment.NewTester(cfg.Setup(log), cfg.Sim.Dt)

	ctx, stop := signalContext()
	defer stop()

	if !sweep {
		c, err := tester.SwitchTest(ctx, sim.Mode(compMod), phase)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(c)
		}
		return printComparisons([]experiment.PhaseStats{c.Reference, c.Candidate}, []experiment.Comparison{*c})
	}

	list := make([]sim.Mode, 0, len(modes))
	for _, m := range modes {
		list = append(list, sim.Mode(m))
	}
	rep, err := tester.Sweep(ctx, list, cfg.Sim.Duration)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(rep)
	}
	return printComparisons(rep.Stats, rep.Comparisons)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printComparisons(stats []experiment.PhaseStats, cmps []experiment.Comparison) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODE\tSAMPLES\tMEAN |ΔRPM|\tMAX |ΔRPM|\tSTD |ΔRPM|\tMEAN |Δφ|\tMAX |Δφ|")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			s.Mode, s.Samples, s.MeanSpeedError, s.MaxSpeedError, s.StdSpeedError, s.MeanPhaseError, s.MaxPhaseError)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODE\tSPEED IMPROVEMENT\tPHASE IMPROVEMENT\tVERDICT")
	for _, c := range cmps {
		fmt.Fprintf(w, "%s\t%+.1f%%\t%+.1f%%\t%s\n", c.Candidate.Mode, c.SpeedImprovement, c.PhaseImprovement, c.Verdict)
	}
	return w.Flush()
}

func tuneGains(cmd *cobra.Command, args []string) error {
	v, err := synchro.ParseVariant(args[0])
	if err != nil {
		return err
	}
	if len(grid) == 0 {
		return fmt.Errorf("no --grid given")
	}
	if seedCount < 1 {
		return fmt.Errorf("--seeds must be at least 1")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	gs, err := optim.ParseGrid(grid)
	if err != nil {
		return err
	}
	gs.Workers = workers

	// trial runs stay quiet; the search itself reports at info
	log := newLogger(cfg)
	setup := cfg.Setup(nil)
	base := setup.Field.Seed
	seeds := make([]int64, seedCount)
	for i := range seeds {
		seeds[i] = base + int64(i)
	}

	ctx, stop := signalContext()
	defer stop()

	log.Info("tuning", "controller", string(v), "trials", gs.Size(), "seeds", seedCount, "metric", metric)
	start := time.Now()
	out, err := gs.Search(ctx, optim.EnsembleObjective(setup, v, seeds, sim.Config{
		Dt:       cfg.Sim.Dt,
		Duration: cfg.Sim.Duration,
	}, metric))
	if err != nil {
		return err
	}
	log.Info("tuning done", "elapsed", time.Since(start), "best", out.Value)

	trials := make([]optim.Trial, 0, len(out.Trials))
	for _, t := range out.Trials {
		if t.Err == nil {
			trials = append(trials, t)
		}
	}
	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Value < trials[j].Value })
	if len(trials) > 10 {
		trials = trials[:10]
	}

	names := make([]string, 0, len(out.Best))
	for name := range out.Best {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metric))
	for _, t := range trials {
		cols := make([]string, len(names))
		for i, name := range names {
			cols[i] = strconv.FormatFloat(t.Params[name], 'g', 6, 64)
		}
		fmt.Fprintf(w, "%s\t%.4f\n", strings.Join(cols, "\t"), t.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if writeTo == "" {
		return nil
	}
	g, err := synchro.GainsFromParams(cfg.Gains(v), out.Best)
	if err != nil {
		return err
	}
	cfg.SetGains(v, g)
	if err := config.Save(writeTo, cfg); err != nil {
		return err
	}
	fmt.Printf("\nbest gains written to %s\n", writeTo)
	return nil
}

// probe builds the configured field and resolves the probe point, which
// defaults to the main rotor position.
func probe(cmd *cobra.Command) (*field.Field, float64, float64, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, 0, 0, err
	}
	setup := cfg.Setup(nil)
	f, err := field.New(setup.Field)
	if err != nil {
		return nil, 0, 0, err
	}
	x, y := setup.Main.X, setup.Main.Y
	if cmd.Flags().Changed("x") {
		x = posX
	}
	if cmd.Flags().Changed("y") {
		y = posY
	}
	return f, x, y, nil
}

func validateField(cmd *cobra.Command, args []string) error {
	f, x, y, err := probe(cmd)
	if err != nil {
		return err
	}
	rep := analysis.Validate(f, x, y)
	c := rep.Config

	fmt.Printf("field: λ=%.0fm  V=%.1fm/s  ρ∈[%.3f, %.3f]  octaves=%d  seed=%d\n\n",
		c.Wavelength, c.DriftVelocity, c.RhoMin, c.RhoMax, c.Octaves, c.Seed)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tEXPECTED\tMEASURED\tRESULT")
	freqOK := math.Abs(rep.Frequency.PeakFrequency-rep.Frequency.ExpectedFrequency) <= 0.5*rep.Frequency.ExpectedFrequency
	fmt.Fprintf(w, "temporal frequency\t%.3f Hz\t%.3f Hz\t%s\n", rep.Frequency.ExpectedFrequency, rep.Frequency.PeakFrequency, passFail(freqOK))
	fmt.Fprintf(w, "spatial wavelength\t%.0f m\t%.0f m\t-\n", c.Wavelength, rep.Spatial.EstimatedWavelength)
	fmt.Fprintf(w, "drift (dt=%.0fs)\t< %.0f%%\t%.3f%%\t%s\n", rep.Drift.Dt, analysis.DriftTolerance*100, rep.Drift.RelativeError*100, passFail(rep.Drift.OK))
	fmt.Fprintf(w, "grid mean\t-\t%.4f\t-\n", rep.Spatial.Mean)
	fmt.Fprintf(w, "grid range\t%.4f\t%.4f\t-\n", c.RhoMax-c.RhoMin, rep.Spatial.Range)
	fmt.Fprintf(w, "grid std\t-\t%.4f\t-\n", rep.Spatial.Std)
	return w.Flush()
}

func passFail(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}

func fieldSpectrum(cmd *cobra.Command, args []string) error {
	f, x, y, err := probe(cmd)
	if err != nil {
		return err
	}
	rep := analysis.FrequencyAnalysis(f, x, y, duration, sampleRate)

	fmt.Printf("probe: (%.0f, %.0f)  %.0fs at %.0f Hz\n", x, y, duration, sampleRate)
	fmt.Printf("peak: %.3f Hz  expected: %.3f Hz\n\n", rep.PeakFrequency, rep.ExpectedFrequency)

	fmt.Println(asciigraph.Plot(rep.Density,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("density (kg/m³)"),
	))
	fmt.Println()

	var power []float64
	for i, fr := range rep.Spectrum.Frequencies {
		if fr >= analysis.FrequencyMin && fr <= analysis.FrequencyMax {
			power = append(power, rep.Spectrum.Power[i])
		}
	}
	if len(power) == 0 {
		return nil
	}
	fmt.Println(asciigraph.Plot(power,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("power %.1f-%.1f Hz", analysis.FrequencyMin, analysis.FrequencyMax)),
	))
	return nil
}

func fieldGrid(cmd *cobra.Command, args []string) error {
	f, x, y, err := probe(cmd)
	if err != nil {
		return err
	}
	if gridN < 2 {
		return fmt.Errorf("--n must be at least 2")
	}
	xs := field.Linspace(x-extent/2, x+extent/2, gridN)
	ys := field.Linspace(y-extent/2, y+extent/2, gridN)
	g := f.SampleGrid(xs, ys, atTime)
	rep := analysis.SpatialAnalysis(g, xs, ys)

	fmt.Printf("grid: %dx%d over %.0fm around (%.0f, %.0f) at t=%.1fs\n", gridN, gridN, extent, x, y, atTime)
	fmt.Printf("mean: %.4f  min: %.4f  max: %.4f  std: %.4f\n", rep.Mean, rep.Min, rep.Max, rep.Std)
	fmt.Printf("estimated wavelength: %.0f m (configured %.0f m)\n", rep.EstimatedWavelength, f.Config().Wavelength)

	if outPath == "" {
		return nil
	}
	lo, hi := f.Bounds()
	if err := os.WriteFile(outPath, []byte(export.HeatmapSVG(g, lo, hi, cellSize)), 0644); err != nil {
		return err
	}
	fmt.Printf("heatmap written to %s\n", outPath)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tTIME\tDURATION\tDT\tINTEG\tSEED\tMEAN |ΔRPM|")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1fs\t%.4fs\t%s\t%d\t%.3f\n",
			shortID(run.ID),
			run.Mode,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Seed,
			run.Metrics["mean_speed_error_rpm"],
		)
	}

	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func parseAxis(name string) (analysis.Axis, error) {
	switch name {
	case "phase":
		return analysis.PhaseErrorAxis, nil
	case "speed":
		return analysis.SpeedErrorAxis, nil
	case "correction":
		return analysis.CorrectionAxis, nil
	}
	return nil, fmt.Errorf("unknown axis: %s (want phase, speed or correction)", name)
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)

	var meta *storage.RunMetadata
	var err error
	if len(args) > 0 {
		meta, err = st.Load(args[0])
	} else {
		meta, err = st.Latest()
	}
	if err != nil {
		return err
	}

	samples, err := st.LoadSamples(meta.ID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("mode: %s\n", meta.Mode)
	fmt.Printf("samples: %d\n\n", len(samples))

	series := []struct {
		caption string
		get     func(sim.Sample) float64
	}{
		{"rpm main", func(s sim.Sample) float64 { return s.Main.RPM }},
		{"rpm follower", func(s sim.Sample) float64 { return s.Follower.RPM }},
		{"speed error (rpm)", func(s sim.Sample) float64 { return s.SpeedErrorRPM }},
		{"phase error (rad)", func(s sim.Sample) float64 { return s.PhaseError }},
		{"correction (rpm)", func(s sim.Sample) float64 { return s.Correction }},
	}
	for _, ser := range series {
		data := make([]float64, len(samples))
		for i, s := range samples {
			data[i] = ser.get(s)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(ser.caption),
		))
		fmt.Println()
	}

	if !portrait && !section {
		return nil
	}
	xa, err := parseAxis(xAxis)
	if err != nil {
		return err
	}
	ya, err := parseAxis(yAxis)
	if err != nil {
		return err
	}
	var p *analysis.PhasePortrait
	if section {
		p = analysis.GenerateRevolutionSection(samples, xa, ya)
		fmt.Printf("revolution section: %s vs %s (%d points)\n", yAxis, xAxis, len(p.Points))
	} else {
		p = analysis.GeneratePhasePortrait(samples, xa, ya)
		fmt.Printf("phase portrait: %s vs %s\n", yAxis, xAxis)
	}
	fmt.Println(analysis.PhasePortraitToASCII(p, 80, 24))
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(meta.ID)
	if err != nil {
		return err
	}

	path := outPath
	if path == "" {
		path = shortID(meta.ID) + ".svg"
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	title := fmt.Sprintf("%s  mode=%s  seed=%d", shortID(meta.ID), meta.Mode, meta.Seed)
	if err := export.WriteTelemetrySVG(file, title, samples, width, height); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Sim.Mode = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := sim.ParseMode(cfg.Sim.Mode)
	if err != nil {
		return err
	}
	return viz.RunLive(cfg.Setup(tuiLogger(cmd, cfg)), mode, cfg.Sim.Dt)
}

func listPresets(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()

	fmt.Println("presets:")
	for _, p := range config.ListPresets() {
		c := config.GetPreset(p)
		fmt.Printf("  %-10s λ=%.0fm  V=%.0fm/s  octaves=%d\n", p, c.Field.Wavelength, c.Field.DriftVelocity, c.Field.Octaves)
	}
	fmt.Println("\nmodes:")
	fmt.Printf("  %s\n", sim.Off)
	for _, name := range registry.ListControllers() {
		ps, err := registry.Params(name)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(ps))
		for k := range ps {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("  %-10s params: %s\n", name, strings.Join(keys, ", "))
	}
	fmt.Println("\nintegrators:")
	for _, name := range registry.ListIntegrators() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := "synchro.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
