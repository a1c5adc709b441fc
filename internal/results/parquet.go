package results

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/duckmesh/vtbench/internal/harness"
)

const (
	KindQuery       = "query"
	KindMaterialize = "materialize"
)

type Row struct {
	RunID     string `parquet:"run_id"`
	Kind      string `parquet:"kind"`
	Shape     string `parquet:"shape"`
	Strategy  string `parquet:"strategy"`
	Relation  string `parquet:"relation"`
	Literal   string `parquet:"literal"`
	Count     int64  `parquet:"count"`
	ElapsedNs int64  `parquet:"elapsed_ns"`
}

// Rows flattens a report: outcomes first, in run order, then materializations.
func Rows(report harness.Report) []Row {
	rows := make([]Row, 0, len(report.Outcomes)+len(report.Materializations))
	for _, outcome := range report.Outcomes {
		rows = append(rows, Row{
			RunID:     report.RunID,
			Kind:      KindQuery,
			Shape:     string(outcome.Shape),
			Strategy:  string(outcome.Strategy),
			Relation:  outcome.Relation,
			Literal:   outcome.Literal,
			Count:     outcome.Count,
			ElapsedNs: outcome.Elapsed.Nanoseconds(),
		})
	}
	for _, load := range report.Materializations {
		rows = append(rows, Row{
			RunID:     report.RunID,
			Kind:      KindMaterialize,
			Strategy:  string(harness.StrategyMemory),
			Relation:  load.Relation,
			Count:     load.Rows,
			ElapsedNs: load.Elapsed.Nanoseconds(),
		})
	}
	return rows
}

func Encode(report harness.Report) ([]byte, error) {
	rows := Rows(report)
	if len(rows) == 0 {
		return nil, fmt.Errorf("report has no measurements")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Row](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes the report and replaces path atomically.
func WriteFile(path string, report harness.Report) error {
	data, err := Encode(report)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename results: %w", err)
	}
	return nil
}
