package vtbench

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/duckmesh/vtbench/internal/fixtures"
	"github.com/duckmesh/vtbench/internal/storage"
)

// RunFixtures writes a synthetic dataset and optionally uploads it to the
// object store. It prints the paths a benchmark run should be given.
func RunFixtures(ctx context.Context, args []string, defaults Options) int {
	stdout := writerOr(defaults.Stdout)
	stderr := writerOr(defaults.Stderr)
	logger := defaults.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	base := fixtures.DefaultConfig()

	fs := flag.NewFlagSet("vtbench-fixtures", flag.ContinueOnError)
	fs.SetOutput(stderr)

	out := fs.String("out", "fixtures", "output directory")
	trips := fs.Int("trips", base.Trips, "number of trips")
	stops := fs.Int("stops", base.Stops, "number of distinct stops")
	stopsPerTrip := fs.Int("stops-per-trip", base.StopsPerTrip, "stop times per trip")
	routes := fs.Int("routes", base.Routes, "number of routes")
	seed := fs.Int64("seed", base.Seed, "random seed")
	hotStop := fs.String("hot-stop", base.HotStop, "stop_id that receives a fixed share of stop times")
	hotPercent := fs.Int("hot-percent", base.HotStopPercent, "share of stop times at -hot-stop, in percent")
	orphanEvery := fs.Int("orphan-every", base.OrphanEvery, "omit every n-th trip from trips.txt (0 keeps all)")
	scenario := fs.Bool("scenario", false, "write the small hand-checked dataset instead of a generated one")
	uploadPrefix := fs.String("upload-prefix", "", "upload both files under this object key prefix")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		_, _ = fmt.Fprintln(stderr, "usage: vtbench-fixtures [flags]")
		fs.PrintDefaults()
		return 2
	}

	var (
		files fixtures.Files
		name  string
		err   error
	)
	if *scenario {
		name = "scenario"
		files, err = fixtures.WriteScenario(*out)
	} else {
		name = fmt.Sprintf("seed-%d", *seed)
		var generator *fixtures.Generator
		generator, err = fixtures.NewGenerator(fixtures.Config{
			Trips:          *trips,
			Stops:          *stops,
			StopsPerTrip:   *stopsPerTrip,
			Routes:         *routes,
			HotStop:        strings.TrimSpace(*hotStop),
			HotStopPercent: *hotPercent,
			OrphanEvery:    *orphanEvery,
			Seed:           *seed,
		})
		if err == nil {
			files, err = generator.Write(*out)
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "generate failed: %v\n", err)
		return 1
	}
	logger.Info("fixtures written",
		slog.String("dir", files.Dir),
		slog.Int("stop_times", len(files.StopTimes)),
		slog.Int("trips", len(files.Trips)),
	)

	if strings.TrimSpace(*uploadPrefix) == "" {
		_, _ = fmt.Fprintf(stdout, "%s %s\n", files.StopTimesPath, files.TripsPath)
		return 0
	}

	opener := defaults.OpenStore
	if opener == nil {
		opener = OpenS3Store
	}
	store, err := opener(ctx, defaults.Config.ObjectStore)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "upload failed: %v\n", err)
		return 1
	}
	keys := make([]string, 0, 2)
	for _, local := range []string{files.StopTimesPath, files.TripsPath} {
		key, err := uploadFile(ctx, store, *uploadPrefix, name, local)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "upload failed: %v\n", err)
			return 1
		}
		logger.Info("fixture uploaded", slog.String("key", key))
		keys = append(keys, "s3://"+key)
	}
	_, _ = fmt.Fprintln(stdout, strings.Join(keys, " "))
	return 0
}

func uploadFile(ctx context.Context, store storage.DatasetStore, prefix, name, local string) (string, error) {
	key, err := storage.BuildDatasetKey(prefix, name, filepath.Base(local))
	if err != nil {
		return "", err
	}
	if _, err := store.UploadCSV(ctx, key, local); err != nil {
		return "", err
	}
	return key, nil
}
