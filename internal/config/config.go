package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Dataset       DatasetConfig
	Bench         BenchConfig
	Engine        EngineConfig
	ObjectStore   ObjectStoreConfig
	Report        ReportConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type DatasetConfig struct {
	StopTimesPath string
	TripsPath     string
	WorkDir       string
}

type BenchConfig struct {
	ScanLiteral  string
	JoinLiterals []string
	Strategies   []string
	// Timeout bounds a whole run; zero means no limit.
	Timeout time.Duration
}

type EngineConfig struct {
	Threads     int
	MemoryLimit string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ReportConfig struct {
	ResultsPath string
	MetricsPath string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("VTBENCH_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid VTBENCH_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "VTBENCH_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_STOP_TIMES_PATH", &cfg.Dataset.StopTimesPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_TRIPS_PATH", &cfg.Dataset.TripsPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_WORK_DIR", &cfg.Dataset.WorkDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_SCAN_LITERAL", &cfg.Bench.ScanLiteral); err != nil {
		return Config{}, err
	}
	if err := applyList(lookup, "VTBENCH_JOIN_LITERALS", &cfg.Bench.JoinLiterals); err != nil {
		return Config{}, err
	}
	if err := applyList(lookup, "VTBENCH_STRATEGIES", &cfg.Bench.Strategies); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "VTBENCH_RUN_TIMEOUT", &cfg.Bench.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "VTBENCH_ENGINE_THREADS", &cfg.Engine.Threads); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_ENGINE_MEMORY_LIMIT", &cfg.Engine.MemoryLimit); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "VTBENCH_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "VTBENCH_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_RESULTS_PATH", &cfg.Report.ResultsPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "VTBENCH_METRICS_PATH", &cfg.Report.MetricsPath); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "VTBENCH_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "VTBENCH_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Dataset.StopTimesPath == "" || cfg.Dataset.TripsPath == "" {
		return Config{}, fmt.Errorf("both input file paths are required")
	}
	if len(cfg.Bench.Strategies) == 0 {
		return Config{}, fmt.Errorf("at least one strategy is required")
	}
	if cfg.Bench.ScanLiteral == "" && len(cfg.Bench.JoinLiterals) == 0 {
		return Config{}, fmt.Errorf("a scan literal or at least one join literal is required")
	}
	if cfg.Bench.Timeout < 0 {
		return Config{}, fmt.Errorf("invalid VTBENCH_RUN_TIMEOUT: %s", cfg.Bench.Timeout)
	}
	if cfg.Engine.Threads < 0 {
		return Config{}, fmt.Errorf("invalid VTBENCH_ENGINE_THREADS: %d", cfg.Engine.Threads)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "vtbench"},
		Dataset: DatasetConfig{
			StopTimesPath: "stop_times.txt",
			TripsPath:     "trips.txt",
			WorkDir:       "",
		},
		Bench: BenchConfig{
			ScanLiteral:  "893",
			JoinLiterals: []string{"893", "313178"},
			Strategies:   []string{"virtual", "memory"},
		},
		Engine: EngineConfig{
			Threads:     0,
			MemoryLimit: "",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "vtbench",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  false,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Engine.Threads = 1
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Observability.LogJSON = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = SplitList(raw)
	return nil
}

// SplitList splits a comma-separated value, dropping blank entries.
func SplitList(raw string) []string {
	values := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
