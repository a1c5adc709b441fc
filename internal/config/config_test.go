package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("vtbench", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.Dataset.StopTimesPath != "stop_times.txt" || cfg.Dataset.TripsPath != "trips.txt" {
		t.Fatalf("Dataset = %#v", cfg.Dataset)
	}
	if cfg.Bench.ScanLiteral != "893" {
		t.Fatalf("Bench.ScanLiteral = %q", cfg.Bench.ScanLiteral)
	}
	if !reflect.DeepEqual(cfg.Bench.JoinLiterals, []string{"893", "313178"}) {
		t.Fatalf("Bench.JoinLiterals = %#v", cfg.Bench.JoinLiterals)
	}
	if !reflect.DeepEqual(cfg.Bench.Strategies, []string{"virtual", "memory"}) {
		t.Fatalf("Bench.Strategies = %#v", cfg.Bench.Strategies)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to false in dev")
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Engine.Threads != 0 {
		t.Fatalf("Engine.Threads = %d", cfg.Engine.Threads)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("vtbench", mapLookup(map[string]string{"VTBENCH_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"VTBENCH_PROFILE":                        "test",
		"VTBENCH_SERVICE_NAME":                   "vtbench-ci",
		"VTBENCH_STOP_TIMES_PATH":                "s3://gtfs/stop_times.txt",
		"VTBENCH_TRIPS_PATH":                     "/data/trips.txt",
		"VTBENCH_WORK_DIR":                       "/tmp/vtbench",
		"VTBENCH_SCAN_LITERAL":                   "A",
		"VTBENCH_JOIN_LITERALS":                  " A, B ,,C ",
		"VTBENCH_STRATEGIES":                     "memory",
		"VTBENCH_RUN_TIMEOUT":                    "90s",
		"VTBENCH_ENGINE_THREADS":                 "4",
		"VTBENCH_ENGINE_MEMORY_LIMIT":            "2GB",
		"VTBENCH_OBJECTSTORE_ENDPOINT":           "s3.example.com",
		"VTBENCH_OBJECTSTORE_BUCKET":             "datasets",
		"VTBENCH_OBJECTSTORE_REGION":             "us-west-2",
		"VTBENCH_OBJECTSTORE_ACCESS_KEY":         "abc",
		"VTBENCH_OBJECTSTORE_SECRET_KEY":         "def",
		"VTBENCH_OBJECTSTORE_USE_SSL":            "true",
		"VTBENCH_OBJECTSTORE_PREFIX":             "bench",
		"VTBENCH_OBJECTSTORE_AUTO_CREATE_BUCKET": "false",
		"VTBENCH_RESULTS_PATH":                   "results.parquet",
		"VTBENCH_METRICS_PATH":                   "metrics.prom",
		"VTBENCH_LOG_JSON":                       "true",
		"VTBENCH_LOG_LEVEL":                      "error",
	})
	cfg, err := Load("vtbench", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "vtbench-ci" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.Dataset.StopTimesPath != "s3://gtfs/stop_times.txt" {
		t.Fatalf("Dataset.StopTimesPath = %q", cfg.Dataset.StopTimesPath)
	}
	if cfg.Dataset.TripsPath != "/data/trips.txt" {
		t.Fatalf("Dataset.TripsPath = %q", cfg.Dataset.TripsPath)
	}
	if cfg.Dataset.WorkDir != "/tmp/vtbench" {
		t.Fatalf("Dataset.WorkDir = %q", cfg.Dataset.WorkDir)
	}
	if cfg.Bench.ScanLiteral != "A" {
		t.Fatalf("Bench.ScanLiteral = %q", cfg.Bench.ScanLiteral)
	}
	if !reflect.DeepEqual(cfg.Bench.JoinLiterals, []string{"A", "B", "C"}) {
		t.Fatalf("Bench.JoinLiterals = %#v", cfg.Bench.JoinLiterals)
	}
	if !reflect.DeepEqual(cfg.Bench.Strategies, []string{"memory"}) {
		t.Fatalf("Bench.Strategies = %#v", cfg.Bench.Strategies)
	}
	if cfg.Bench.Timeout != 90*time.Second {
		t.Fatalf("Bench.Timeout = %v", cfg.Bench.Timeout)
	}
	if cfg.Engine.Threads != 4 || cfg.Engine.MemoryLimit != "2GB" {
		t.Fatalf("Engine = %#v", cfg.Engine)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" || cfg.ObjectStore.Bucket != "datasets" {
		t.Fatalf("ObjectStore = %#v", cfg.ObjectStore)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket = true, want false")
	}
	if cfg.Report.ResultsPath != "results.parquet" || cfg.Report.MetricsPath != "metrics.prom" {
		t.Fatalf("Report = %#v", cfg.Report)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON = false, want true")
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"VTBENCH_PROFILE": "oops"},
		{"VTBENCH_ENGINE_THREADS": "many"},
		{"VTBENCH_ENGINE_THREADS": "-1"},
		{"VTBENCH_RUN_TIMEOUT": "soon"},
		{"VTBENCH_RUN_TIMEOUT": "-5s"},
		{"VTBENCH_OBJECTSTORE_USE_SSL": "not-bool"},
		{"VTBENCH_LOG_LEVEL": "verbose"},
		{"VTBENCH_STRATEGIES": " , "},
		{"VTBENCH_TRIPS_PATH": ""},
		{"VTBENCH_SCAN_LITERAL": "", "VTBENCH_JOIN_LITERALS": ""},
	}
	for _, env := range tests {
		_, err := Load("vtbench", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestSplitList(t *testing.T) {
	if got := SplitList(""); len(got) != 0 {
		t.Fatalf("SplitList(\"\") = %#v", got)
	}
	if got := SplitList("893, 313178"); !reflect.DeepEqual(got, []string{"893", "313178"}) {
		t.Fatalf("SplitList() = %#v", got)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
