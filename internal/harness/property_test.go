package harness

import (
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/duckmesh/vtbench/internal/fixtures"
)

var sampledStops = []string{"A", "B", "C"}

func genStopTimes() gopter.Gen {
	return gen.SliceOf(gen.Struct(reflect.TypeOf(fixtures.StopTime{}), map[string]gopter.Gen{
		"TripID":       gen.OneConstOf("T1", "T2", "T3", "T4"),
		"StopID":       gen.OneConstOf("A", "B", "C"),
		"StopSequence": gen.IntRange(1, 9),
	}))
}

func genTrips() gopter.Gen {
	return gen.SliceOf(gen.Struct(reflect.TypeOf(fixtures.Trip{}), map[string]gopter.Gen{
		"TripID":      gen.OneConstOf("T1", "T2", "T3", "T5"),
		"DirectionID": gen.IntRange(0, 1),
		"RouteID":     gen.OneConstOf("R1", "R2"),
	}))
}

// runGenerated loads a generated dataset under both strategies. A row at stop D
// on trip T9 keeps both files non-empty without touching the sampled stops.
func runGenerated(t *testing.T, stopTimes []fixtures.StopTime, trips []fixtures.Trip) (Report, []fixtures.StopTime, []fixtures.Trip, bool) {
	stopTimes = append(append([]fixtures.StopTime{}, stopTimes...), fixtures.StopTime{TripID: "T9", StopID: "D", StopSequence: 1})
	trips = append(append([]fixtures.Trip{}, trips...), fixtures.Trip{TripID: "T9", DirectionID: 1, RouteID: "R9"})

	dir := t.TempDir()
	stopTimesPath := writeRows(t, dir, fixtures.StopTimesFile, func(w io.Writer) error { return fixtures.WriteStopTimes(w, stopTimes) })
	tripsPath := writeRows(t, dir, fixtures.TripsFile, func(w io.Writer) error { return fixtures.WriteTrips(w, trips) })

	session := openDuckSession(t)
	plan := NewPlan(stopTimesPath, tripsPath, "", nil, nil)
	for _, strategy := range []Strategy{StrategyVirtual, StrategyMemory} {
		for _, stop := range sampledStops {
			plan.Steps = append(plan.Steps,
				Step{Shape: ShapeScan, Literal: stop, Strategy: strategy},
				Step{Shape: ShapeJoin, Literal: stop, Strategy: strategy},
			)
		}
	}
	report, err := New(session, Options{}).Run(context.Background(), plan)
	if err != nil {
		t.Logf("Run() error = %v", err)
		return report, nil, nil, false
	}
	return report, stopTimes, trips, true
}

func TestProperty_StrategiesAgreeWithBruteForce(t *testing.T) {
	if testing.Short() {
		t.Skip("property test opens many engine sessions")
	}
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.MaxSize = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("scan and join counts match brute force under both strategies", prop.ForAll(
		func(stopTimes []fixtures.StopTime, trips []fixtures.Trip) bool {
			report, allStopTimes, allTrips, ok := runGenerated(t, stopTimes, trips)
			if !ok {
				return false
			}
			half := len(report.Outcomes) / 2
			for i, outcome := range report.Outcomes {
				var want int64
				if outcome.Shape == ShapeScan {
					want = fixtures.ScanCount(allStopTimes, outcome.Literal)
				} else {
					want = fixtures.JoinCount(allStopTimes, allTrips, outcome.Literal)
				}
				if outcome.Count != want {
					t.Logf("%s %s(%s) = %d, want %d", outcome.Relation, outcome.Shape, outcome.Literal, outcome.Count, want)
					return false
				}
				if i < half && report.Outcomes[i+half].Count != outcome.Count {
					return false
				}
			}
			return true
		},
		genStopTimes(),
		genTrips(),
	))

	properties.Property("materialization preserves row counts", prop.ForAll(
		func(stopTimes []fixtures.StopTime, trips []fixtures.Trip) bool {
			report, allStopTimes, allTrips, ok := runGenerated(t, stopTimes, trips)
			if !ok || len(report.Materializations) != 2 {
				return false
			}
			return report.Materializations[0].Rows == int64(len(allStopTimes)) &&
				report.Materializations[1].Rows == int64(len(allTrips))
		},
		genStopTimes(),
		genTrips(),
	))

	properties.TestingRun(t)
}
