package harness

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duckmesh/vtbench/internal/query"
)

type fakeSession struct {
	counts     []int64
	prepareErr error
	rowsErr    error
	scanErr    error
	prepared   []string
	rows       *fakeRows
}

func (s *fakeSession) Exec(context.Context, string) error { return nil }

func (s *fakeSession) Prepare(_ context.Context, sqlText string) (query.Statement, error) {
	s.prepared = append(s.prepared, sqlText)
	if s.prepareErr != nil {
		return nil, s.prepareErr
	}
	return &fakeStatement{session: s}, nil
}

func (s *fakeSession) RegisterProvider(query.RelationProvider) error { return nil }

func (s *fakeSession) Provider() (query.RelationProvider, error) { return nil, query.ErrNoProvider }

func (s *fakeSession) Close() error { return nil }

type fakeStatement struct {
	session *fakeSession
}

func (s *fakeStatement) Rows(context.Context) (query.Rows, error) {
	if s.session.rowsErr != nil {
		return nil, s.session.rowsErr
	}
	s.session.rows = &fakeRows{values: s.session.counts, pos: -1, scanErr: s.session.scanErr}
	return s.session.rows, nil
}

func (s *fakeStatement) Close() error { return nil }

type fakeRows struct {
	values  []int64
	pos     int
	pulled  int
	closed  bool
	scanErr error
}

func (r *fakeRows) Next() bool {
	if r.pos+1 >= len(r.values) {
		return false
	}
	r.pos++
	r.pulled++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	*(dest[0].(*int64)) = r.values[r.pos]
	return nil
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

func steppedClock(step time.Duration) func() time.Time {
	current := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

var (
	stopTimesV = Registration{Base: "StopTimes", Strategy: StrategyVirtual, Kind: KindSource}
	tripSeqsM  = Registration{Base: "TripSeqs", Strategy: StrategyMemory, Kind: KindJoinView}
)

func TestRunnerCountDrainsRows(t *testing.T) {
	session := &fakeSession{counts: []int64{7, 9}}
	runner := &Runner{now: steppedClock(2 * time.Second)}

	outcome, err := runner.Count(context.Background(), session, stopTimesV, "893")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if outcome.Count != 7 {
		t.Fatalf("Count = %d, want 7", outcome.Count)
	}
	if outcome.Elapsed != 2*time.Second {
		t.Fatalf("Elapsed = %v", outcome.Elapsed)
	}
	if session.rows.pulled != 2 || !session.rows.closed {
		t.Fatalf("rows pulled = %d closed = %v", session.rows.pulled, session.rows.closed)
	}
	if outcome.Relation != "StopTimesV" || outcome.Strategy != StrategyVirtual || outcome.Shape != ShapeScan {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if session.prepared[0] != `SELECT count(*) FROM "StopTimesV" WHERE stop_id = '893';` {
		t.Fatalf("prepared = %q", session.prepared[0])
	}
}

func TestRunnerJoinCountPullsFirstRowOnly(t *testing.T) {
	session := &fakeSession{counts: []int64{4, 5}}
	var out bytes.Buffer
	runner := &Runner{Reporter: NewConsoleReporter(&out), now: steppedClock(time.Second)}

	outcome, err := runner.JoinCount(context.Background(), session, tripSeqsM, "313178")
	if err != nil {
		t.Fatalf("JoinCount() error = %v", err)
	}
	if outcome.Count != 4 || session.rows.pulled != 1 {
		t.Fatalf("count = %d pulled = %d", outcome.Count, session.rows.pulled)
	}
	want := "SELECT count(*) FROM \"TripSeqsM\" WHERE stop_id = '313178';\n" +
		"Prepared statement, called query() ...\n" +
		"4\n" +
		"Completed in 1 seconds.\n\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}

func TestRunnerNoRowsIsQueryError(t *testing.T) {
	runner := &Runner{}
	_, err := runner.JoinCount(context.Background(), &fakeSession{}, tripSeqsM, "A")
	if !errors.Is(err, ErrNoRows) {
		t.Fatalf("JoinCount() error = %v, want ErrNoRows", err)
	}
	var queryErr *QueryError
	if !errors.As(err, &queryErr) || queryErr.Relation != "TripSeqsM" {
		t.Fatalf("JoinCount() error = %#v", err)
	}
	if queryErr.Kind != FailureNoRows {
		t.Fatalf("kind = %q, want %q", queryErr.Kind, FailureNoRows)
	}
}

func TestRunnerPrepareFailureIsQueryError(t *testing.T) {
	engineErr := &query.EngineError{Op: "prepare", Err: errors.New("catalog error")}
	runner := &Runner{}
	_, err := runner.Count(context.Background(), &fakeSession{prepareErr: engineErr}, stopTimesV, "A")
	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Count() error = %v, want QueryError", err)
	}
	if queryErr.Kind != FailurePrepare {
		t.Fatalf("kind = %q, want %q", queryErr.Kind, FailurePrepare)
	}
	var gotEngine *query.EngineError
	if !errors.As(err, &gotEngine) {
		t.Fatalf("Count() error = %v, want wrapped EngineError", err)
	}
}

func TestRunnerRejectsWrongRelationKind(t *testing.T) {
	runner := &Runner{}
	session := &fakeSession{counts: []int64{1}}
	_, err := runner.Count(context.Background(), session, tripSeqsM, "A")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Count(join view) error = %v", err)
	}
	if kind, _ := KindOf(err); kind != FailureInvalidState {
		t.Fatalf("kind = %q, want %q", kind, FailureInvalidState)
	}
	if _, err := runner.JoinCount(context.Background(), session, stopTimesV, "A"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("JoinCount(source) error = %v", err)
	}
	if len(session.prepared) != 0 {
		t.Fatalf("prepared = %v, want none", session.prepared)
	}
}

func TestRunnerClassifiesExecuteAndScanFailures(t *testing.T) {
	cases := map[string]struct {
		session *fakeSession
		want    FailureKind
	}{
		"execute": {session: &fakeSession{rowsErr: &query.EngineError{Op: "query", Err: errors.New("io error")}}, want: FailureExecute},
		"scan":    {session: &fakeSession{counts: []int64{1}, scanErr: &query.EngineError{Op: "scan", Err: errors.New("conversion error")}}, want: FailureScan},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := (&Runner{}).Count(context.Background(), tc.session, stopTimesV, "A")
			var queryErr *QueryError
			if !errors.As(err, &queryErr) {
				t.Fatalf("Count() error = %v, want QueryError", err)
			}
			if queryErr.Kind != tc.want {
				t.Fatalf("kind = %q, want %q", queryErr.Kind, tc.want)
			}
			if queryErr.SQL == "" {
				t.Fatal("expected SQL on query error")
			}
		})
	}
}

func TestCountSQLQuotesLiteral(t *testing.T) {
	got := CountSQL("StopTimesV", "O'Hare")
	want := `SELECT count(*) FROM "StopTimesV" WHERE stop_id = 'O''Hare';`
	if got != want {
		t.Fatalf("CountSQL() = %q, want %q", got, want)
	}
}
