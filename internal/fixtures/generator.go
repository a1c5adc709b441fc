package fixtures

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

const (
	StopTimesFile = "stop_times.txt"
	TripsFile     = "trips.txt"
)

type StopTime struct {
	TripID       string
	StopID       string
	StopSequence int
}

type Trip struct {
	TripID      string
	DirectionID int
	RouteID     string
}

type Config struct {
	Trips        int
	Stops        int
	StopsPerTrip int
	Routes       int
	// HotStop is visited by roughly HotStopPercent of all stop times.
	HotStop        string
	HotStopPercent int
	// OrphanEvery drops every n-th trip from trips.txt so its stop times have no
	// join partner. Zero keeps all trips.
	OrphanEvery int
	Seed        int64
}

func DefaultConfig() Config {
	return Config{
		Trips:          2000,
		Stops:          5000,
		StopsPerTrip:   25,
		Routes:         40,
		HotStop:        "893",
		HotStopPercent: 10,
		OrphanEvery:    0,
		Seed:           1,
	}
}

func (c Config) Validate() error {
	if c.Trips <= 0 {
		return fmt.Errorf("trips must be > 0")
	}
	if c.Stops <= 0 {
		return fmt.Errorf("stops must be > 0")
	}
	if c.StopsPerTrip <= 0 {
		return fmt.Errorf("stops per trip must be > 0")
	}
	if c.Routes <= 0 {
		return fmt.Errorf("routes must be > 0")
	}
	if c.HotStopPercent < 0 || c.HotStopPercent > 100 {
		return fmt.Errorf("hot stop percent must be within [0,100]")
	}
	if c.OrphanEvery < 0 {
		return fmt.Errorf("orphan interval must be >= 0")
	}
	return nil
}

// Generator produces a GTFS-shaped pair of tables. Output is fully determined
// by Config, including Seed.
type Generator struct {
	rnd *rand.Rand
	cfg Config
}

func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{rnd: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}, nil
}

// Generate returns all stop times and the trips that are kept in trips.txt.
func (g *Generator) Generate() ([]StopTime, []Trip) {
	stopTimes := make([]StopTime, 0, g.cfg.Trips*g.cfg.StopsPerTrip)
	trips := make([]Trip, 0, g.cfg.Trips)
	for i := 1; i <= g.cfg.Trips; i++ {
		tripID := fmt.Sprintf("T%06d", i)
		for seq := 1; seq <= g.cfg.StopsPerTrip; seq++ {
			stopTimes = append(stopTimes, StopTime{TripID: tripID, StopID: g.pickStop(), StopSequence: seq})
		}
		if g.cfg.OrphanEvery > 0 && i%g.cfg.OrphanEvery == 0 {
			continue
		}
		trips = append(trips, Trip{
			TripID:      tripID,
			DirectionID: g.rnd.Intn(2),
			RouteID:     fmt.Sprintf("R%03d", g.rnd.Intn(g.cfg.Routes)+1),
		})
	}
	return stopTimes, trips
}

func (g *Generator) pickStop() string {
	if g.cfg.HotStop != "" && g.rnd.Intn(100) < g.cfg.HotStopPercent {
		return g.cfg.HotStop
	}
	return strconv.Itoa(g.rnd.Intn(g.cfg.Stops) + 1)
}

// Files locates a written dataset.
type Files struct {
	Dir           string
	StopTimesPath string
	TripsPath     string
	StopTimes     []StopTime
	Trips         []Trip
}

func (g *Generator) Write(dir string) (Files, error) {
	stopTimes, trips := g.Generate()
	return writeDataset(dir, stopTimes, trips)
}

// Scenario is the small hand-checked dataset: stop A is served by T1 and T2,
// stop B by T1 and T3.
func Scenario() ([]StopTime, []Trip) {
	return []StopTime{
			{TripID: "T1", StopID: "A", StopSequence: 1},
			{TripID: "T1", StopID: "B", StopSequence: 2},
			{TripID: "T2", StopID: "A", StopSequence: 1},
			{TripID: "T2", StopID: "C", StopSequence: 2},
			{TripID: "T3", StopID: "B", StopSequence: 1},
		}, []Trip{
			{TripID: "T1", DirectionID: 0, RouteID: "R1"},
			{TripID: "T2", DirectionID: 1, RouteID: "R1"},
			{TripID: "T3", DirectionID: 0, RouteID: "R2"},
		}
}

func WriteScenario(dir string) (Files, error) {
	stopTimes, trips := Scenario()
	return writeDataset(dir, stopTimes, trips)
}

func writeDataset(dir string, stopTimes []StopTime, trips []Trip) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create fixture dir: %w", err)
	}
	files := Files{
		Dir:           dir,
		StopTimesPath: filepath.Join(dir, StopTimesFile),
		TripsPath:     filepath.Join(dir, TripsFile),
		StopTimes:     stopTimes,
		Trips:         trips,
	}
	if err := writeCSVFile(files.StopTimesPath, func(w io.Writer) error { return WriteStopTimes(w, stopTimes) }); err != nil {
		return Files{}, err
	}
	if err := writeCSVFile(files.TripsPath, func(w io.Writer) error { return WriteTrips(w, trips) }); err != nil {
		return Files{}, err
	}
	return files, nil
}

func writeCSVFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func WriteStopTimes(w io.Writer, rows []StopTime) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"trip_id", "stop_id", "stop_sequence"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.TripID, row.StopID, strconv.Itoa(row.StopSequence)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteTrips(w io.Writer, rows []Trip) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"trip_id", "direction_id", "route_id"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.TripID, strconv.Itoa(row.DirectionID), row.RouteID}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ScanCount counts stop times at stopID.
func ScanCount(stopTimes []StopTime, stopID string) int64 {
	var count int64
	for _, row := range stopTimes {
		if row.StopID == stopID {
			count++
		}
	}
	return count
}

// JoinCount is the inner-join count of (stop time, trip) pairs sharing a trip id
// where the stop time is at stopID.
func JoinCount(stopTimes []StopTime, trips []Trip, stopID string) int64 {
	perTrip := map[string]int64{}
	for _, trip := range trips {
		perTrip[trip.TripID]++
	}
	var count int64
	for _, row := range stopTimes {
		if row.StopID == stopID {
			count += perTrip[row.TripID]
		}
	}
	return count
}
