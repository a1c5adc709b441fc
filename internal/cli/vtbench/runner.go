package vtbench

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/duckmesh/vtbench/internal/config"
	"github.com/duckmesh/vtbench/internal/dataset"
	"github.com/duckmesh/vtbench/internal/harness"
	"github.com/duckmesh/vtbench/internal/observability"
	"github.com/duckmesh/vtbench/internal/query/duckdb"
	"github.com/duckmesh/vtbench/internal/results"
	"github.com/duckmesh/vtbench/internal/storage"
	"github.com/duckmesh/vtbench/internal/storage/s3"
)

// StoreOpener builds the object store used for s3:// inputs and uploads.
type StoreOpener func(ctx context.Context, cfg config.ObjectStoreConfig) (storage.DatasetStore, error)

type Options struct {
	Config    config.Config
	Logger    *slog.Logger
	Stdout    io.Writer
	Stderr    io.Writer
	OpenStore StoreOpener
	RunID     string
}

// Run executes one benchmark and returns the process exit code. Measurements
// printed before a failure stay on stdout.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := writerOr(defaults.Stdout)
	stderr := writerOr(defaults.Stderr)
	logger := defaults.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg := defaults.Config

	fs := flag.NewFlagSet("vtbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { writeUsage(stderr, fs) }

	scan := fs.String("scan", cfg.Bench.ScanLiteral, "stop_id literal for the single-table count (empty skips it)")
	join := fs.String("join", strings.Join(cfg.Bench.JoinLiterals, ","), "comma-separated stop_id literals for join counts")
	strategyList := fs.String("strategies", strings.Join(cfg.Bench.Strategies, ","), "comma-separated strategies: virtual, memory")
	resultsPath := fs.String("results", cfg.Report.ResultsPath, "write measurements as parquet to this path")
	metricsPath := fs.String("metrics", cfg.Report.MetricsPath, "write prometheus text metrics to this path")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	stopTimesPath, tripsPath := cfg.Dataset.StopTimesPath, cfg.Dataset.TripsPath
	switch fs.NArg() {
	case 0:
	case 2:
		stopTimesPath, tripsPath = fs.Arg(0), fs.Arg(1)
	default:
		writeUsage(stderr, fs)
		return 2
	}

	strategies, err := parseStrategies(*strategyList)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid -strategies: %v\n", err)
		return 2
	}
	plan := harness.NewPlan(stopTimesPath, tripsPath, strings.TrimSpace(*scan), config.SplitList(*join), strategies)
	if err := plan.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid plan: %v\n", err)
		return 2
	}

	if cfg.Bench.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bench.Timeout)
		defer cancel()
	}

	runID := defaults.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With(slog.String("run_id", runID))

	workDir, cleanup, err := prepareWorkDir(cfg.Dataset.WorkDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "stage failed: %v\n", err)
		return 1
	}
	defer cleanup()

	stager := &dataset.Stager{WorkDir: workDir, Logger: logger}
	if dataset.IsObjectPath(stopTimesPath) || dataset.IsObjectPath(tripsPath) {
		opener := defaults.OpenStore
		if opener == nil {
			opener = OpenS3Store
		}
		stager.Store, err = opener(ctx, cfg.ObjectStore)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "stage failed: %v\n", err)
			return 1
		}
	}
	for i := range plan.Sources {
		local, err := stager.Stage(ctx, plan.Sources[i].Path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "stage failed: %v\n", err)
			return 1
		}
		plan.Sources[i].Path = local
	}

	session, err := duckdb.Open(ctx, duckdb.Config{Threads: cfg.Engine.Threads, MemoryLimit: cfg.Engine.MemoryLimit})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "engine failed: %v\n", err)
		return 1
	}
	defer func() { _ = session.Close() }()
	if err := session.RegisterProvider(duckdb.NewCSVProvider()); err != nil {
		_, _ = fmt.Fprintf(stderr, "engine failed: %v\n", err)
		return 1
	}

	h := harness.New(session, harness.Options{
		RunID:    runID,
		Reporter: harness.NewConsoleReporter(stdout),
		Logger:   logger,
	})
	report, runErr := h.Run(ctx, plan)

	code := 0
	if runErr != nil {
		phase, ok := harness.PhaseOf(runErr)
		if !ok {
			phase = "run"
		}
		_, _ = fmt.Fprintf(stderr, "%s failed: %v\n", phase, runErr)
		logger.Error("benchmark failed", slog.String("phase", string(phase)), slog.Any("error", runErr))
		code = 1
	}

	if path := strings.TrimSpace(*resultsPath); path != "" && len(report.Outcomes)+len(report.Materializations) > 0 {
		if err := results.WriteFile(path, report); err != nil {
			_, _ = fmt.Fprintf(stderr, "write results: %v\n", err)
			code = 1
		} else {
			logger.Info("results written", slog.String("path", path), slog.Int("outcomes", len(report.Outcomes)))
		}
	}
	if path := strings.TrimSpace(*metricsPath); path != "" {
		if err := observability.WriteMetrics(path); err != nil {
			_, _ = fmt.Fprintf(stderr, "write metrics: %v\n", err)
			code = 1
		}
	}

	if code == 0 {
		logger.Info("benchmark completed",
			slog.Int("queries", len(report.Outcomes)),
			slog.Int("materialized", len(report.Materializations)),
			slog.Duration("elapsed", report.Elapsed),
		)
	}
	return code
}

// OpenS3Store connects to the configured S3-compatible bucket.
func OpenS3Store(ctx context.Context, cfg config.ObjectStoreConfig) (storage.DatasetStore, error) {
	store, err := s3.New(ctx, s3.Config{
		Endpoint:         cfg.Endpoint,
		Region:           cfg.Region,
		Bucket:           cfg.Bucket,
		AccessKeyID:      cfg.AccessKeyID,
		SecretAccessKey:  cfg.SecretAccessKey,
		UseSSL:           cfg.UseSSL,
		Prefix:           cfg.Prefix,
		AutoCreateBucket: cfg.AutoCreateBucket,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func parseStrategies(raw string) ([]harness.Strategy, error) {
	var strategies []harness.Strategy
	for _, item := range config.SplitList(raw) {
		strategy, err := harness.ParseStrategy(item)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, strategy)
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	return strategies, nil
}

func prepareWorkDir(dir string) (string, func(), error) {
	if strings.TrimSpace(dir) != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create work dir: %w", err)
		}
		return dir, func() {}, nil
	}
	tmp, err := os.MkdirTemp("", "vtbench-")
	if err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	return tmp, func() { _ = os.RemoveAll(tmp) }, nil
}

func writeUsage(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintln(w, "usage: vtbench [flags] [stop_times.txt trips.txt]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Paths may be local files or s3://<key> objects in the configured bucket.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
