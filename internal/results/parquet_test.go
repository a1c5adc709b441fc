package results

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/duckmesh/vtbench/internal/harness"
)

func sampleReport() harness.Report {
	return harness.Report{
		RunID: "run-1",
		Outcomes: []harness.Outcome{
			{Shape: harness.ShapeScan, Strategy: harness.StrategyVirtual, Relation: "StopTimesV", Literal: "893", Count: 12, Elapsed: 3 * time.Millisecond},
			{Shape: harness.ShapeJoin, Strategy: harness.StrategyMemory, Relation: "TripSeqsM", Literal: "893", Count: 7, Elapsed: time.Millisecond},
		},
		Materializations: []harness.Materialization{
			{Relation: "StopTimesM", Source: "StopTimesV", Base: "StopTimes", Rows: 100, Elapsed: 2 * time.Second},
		},
	}
}

func TestEncodeReport(t *testing.T) {
	data, err := Encode(sampleReport())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty parquet payload")
	}

	reader := parquet.NewGenericReader[Row](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()
	rows := make([]Row, 3)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("read rows = %d", count)
	}
	if rows[0].Kind != KindQuery || rows[0].Shape != "scan" || rows[0].Strategy != "virtual" || rows[0].Count != 12 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Relation != "TripSeqsM" || rows[1].ElapsedNs != time.Millisecond.Nanoseconds() {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
	if rows[2].Kind != KindMaterialize || rows[2].Relation != "StopTimesM" || rows[2].Count != 100 {
		t.Fatalf("unexpected materialize row: %+v", rows[2])
	}
	for _, row := range rows {
		if row.RunID != "run-1" {
			t.Fatalf("run id = %q", row.RunID)
		}
	}
}

func TestEncodeRequiresMeasurements(t *testing.T) {
	if _, err := Encode(harness.Report{RunID: "empty"}); err == nil {
		t.Fatal("expected error for empty report")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.parquet")
	if err := WriteFile(path, sampleReport()); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		t.Fatalf("parquet.ReadFile() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
}
