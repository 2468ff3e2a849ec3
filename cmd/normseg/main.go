// Command normseg segments depth images into planar surfaces by clustering
// their surface normals over a stream of frames.
//
// Usage:
//
//	normseg -depth scene_d.png [-rgb scene_rgb.png] [-out out/scene] [flags]
//
// For the final frame it writes <out>_cRmf.csv (mean directions,
// concentrations and proportions), <out>_labels.png and
// <out>_rgbLabels.png.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/normals.report/internal/config"
	"github.com/banshee-data/normals.report/internal/surface/export"
	"github.com/banshee-data/normals.report/internal/surface/l2normals"
	"github.com/banshee-data/normals.report/internal/surface/l3planes"
	"github.com/banshee-data/normals.report/internal/surface/monitor"
	"github.com/banshee-data/normals.report/internal/surface/pipeline"
	"github.com/banshee-data/normals.report/internal/surface/storage/sqlite"
	"github.com/banshee-data/normals.report/internal/version"
)

// options holds the parsed command line.
type options struct {
	depth      []string
	rgb        string
	out        string
	configPath string
	lambdaDeg  float64
	iterations int
	workers    int
	dbPath     string
	plotsDir   string
	dashboard  string
	verify     bool
	verbose    bool
	trace      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("normseg", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	depth := fs.String("depth", "", "Comma-separated 16-bit depth PNGs, processed in order (required)")
	fs.StringVar(&o.rgb, "rgb", "", "RGB image for the label overlay (defaults to a depth rendering)")
	fs.StringVar(&o.out, "out", "out/normseg", "Output path prefix")
	fs.StringVar(&o.configPath, "config", "", "Tuning config file (.json or .toml); built-in defaults when empty")
	fs.Float64Var(&o.lambdaDeg, "lambda-deg", 0, "Override the angular threshold in degrees (0 keeps the config value)")
	fs.IntVar(&o.iterations, "iterations", 0, "Override how many times each depth image is streamed (0 keeps the config value)")
	fs.IntVar(&o.workers, "workers", -1, "Override intra-frame workers (0 = GOMAXPROCS, -1 keeps the config value)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database to record the run in")
	fs.StringVar(&o.plotsDir, "plots", "", "Directory for cluster time-series PNG plots")
	fs.StringVar(&o.dashboard, "dashboard", "", "HTML file for the cluster dashboard")
	fs.BoolVar(&o.verify, "verify", false, "Recompute resultant sums every frame and report mismatches")
	fs.BoolVar(&o.verbose, "v", false, "Enable diagnostic logging")
	fs.BoolVar(&o.trace, "vv", false, "Enable diagnostic and per-frame trace logging")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.version {
		return &o, nil
	}
	for _, p := range strings.Split(*depth, ",") {
		if p = strings.TrimSpace(p); p != "" {
			o.depth = append(o.depth, p)
		}
	}
	if len(o.depth) == 0 {
		return nil, fmt.Errorf("-depth is required")
	}
	if o.lambdaDeg < 0 {
		return nil, fmt.Errorf("-lambda-deg must be non-negative, got %g", o.lambdaDeg)
	}
	if o.iterations < 0 {
		return nil, fmt.Errorf("-iterations must be non-negative, got %d", o.iterations)
	}
	return &o, nil
}

// loadTuning loads the tuning file (or built-in defaults) and applies the
// command-line overrides.
func loadTuning(o *options) (*config.TuningConfig, error) {
	cfg := config.DefaultTuningConfig()
	if o.configPath != "" {
		loaded, err := config.LoadTuningConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.lambdaDeg > 0 {
		cfg.AngularThresholdDeg = &o.lambdaDeg
	}
	if o.iterations > 0 {
		cfg.Iterations = &o.iterations
	}
	if o.workers >= 0 {
		cfg.Workers = &o.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}
	return cfg, nil
}

func setupLogging(o *options, stderr io.Writer) {
	var diag, trace io.Writer
	if o.verbose || o.trace {
		diag = stderr
	}
	if o.trace {
		trace = stderr
	}
	l3planes.SetLogWriters(l3planes.LogWriters{Ops: stderr, Diag: diag, Trace: trace})
	pipeline.SetLogWriters(pipeline.LogWriters{Ops: stderr, Diag: diag, Trace: trace})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("normseg"))
		return nil
	}
	setupLogging(o, stderr)

	tuning, err := loadTuning(o)
	if err != nil {
		return err
	}
	engineCfg := l3planes.ConfigFromTuning(tuning)
	engine, err := l3planes.NewEngine(engineCfg)
	if err != nil {
		return err
	}

	source, err := l2normals.NewFileSource(l2normals.FileSourceConfig{
		Paths:      o.depth,
		Repeat:     tuning.GetIterations(),
		DepthScale: tuning.GetDepthScale(),
		Focal:      tuning.GetFocalLength(),
		Radius:     tuning.GetGuidedFilterRadius(),
		Eps:        tuning.GetGuidedFilterEps(),
	})
	if err != nil {
		return err
	}

	var background image.Image
	if o.rgb != "" {
		if background, err = export.LoadImage(o.rgb); err != nil {
			return err
		}
	}
	writer, err := export.NewWriter(export.WriterConfig{Prefix: o.out, Background: background, RawDepth: source})
	if err != nil {
		return err
	}

	history := monitor.NewHistory()
	sinks := []pipeline.FrameSink{writer, history}

	var runID string
	if o.dbPath != "" {
		store, err := sqlite.Open(o.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err = store.StartRun(strings.Join(o.depth, ","), sqlite.RunParamsFromConfig(engineCfg))
		if err != nil {
			return err
		}
		sinks = append(sinks, sqlite.NewFrameRecorder(store, runID))
	}

	runner, err := pipeline.NewRunner(pipeline.Config{
		Engine:           engine,
		Source:           source,
		Sinks:            sinks,
		VerifyResultants: o.verify,
	})
	if err != nil {
		return err
	}
	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if o.plotsDir != "" {
		n, err := history.GeneratePlots(o.plotsDir)
		if err != nil {
			return fmt.Errorf("generate plots: %w", err)
		}
		fmt.Fprintf(stdout, "wrote %d plots to %s\n", n, o.plotsDir)
	}
	if o.dashboard != "" {
		if err := writeDashboard(history, o.dashboard); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "frames=%d clusters=%d elapsed=%s\n",
		stats.FramesProcessed, len(engine.Clusters()), stats.Elapsed)
	if runID != "" {
		fmt.Fprintf(stdout, "run_id=%s\n", runID)
	}
	for _, c := range engine.Clusters() {
		fmt.Fprintf(stdout, "cluster %d: dir=(%.4f, %.4f, %.4f) kappa=%.4f pi=%.4f state=%s\n",
			c.ID, c.MeanDirection.X, c.MeanDirection.Y, c.MeanDirection.Z, c.Concentration, c.Proportion, c.State)
	}
	for _, p := range writer.Written() {
		fmt.Fprintf(stdout, "wrote %s\n", p)
	}
	return nil
}

func writeDashboard(h *monitor.History, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dashboard: %w", err)
	}
	if err := h.RenderDashboard(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("normseg: %v", err)
	}
}
