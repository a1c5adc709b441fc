package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/duckmesh/vtbench/internal/observability"
	"github.com/duckmesh/vtbench/internal/query"
)

type Shape string

const (
	ShapeScan Shape = "scan"
	ShapeJoin Shape = "join"
)

// Outcome is one timed count query. Elapsed covers preparation through the
// rows that were pulled.
type Outcome struct {
	Shape    Shape
	Strategy Strategy
	Relation string
	Literal  string
	SQL      string
	Count    int64
	Elapsed  time.Duration
}

// Runner executes the two count query shapes. It holds no state between calls.
type Runner struct {
	Reporter Reporter
	Logger   *slog.Logger

	now func() time.Time
}

// Count counts rows of a source relation whose stop_id equals literal. The
// result sequence is consumed to completion inside the timed region.
func (r *Runner) Count(ctx context.Context, session query.Session, relation Registration, literal string) (Outcome, error) {
	if relation.Kind != KindSource {
		return Outcome{}, &QueryError{Relation: relation.Name(), Kind: FailureInvalidState, Err: fmt.Errorf("scan needs a source relation, got %s: %w", relation.Kind, ErrInvalidState)}
	}
	return r.run(ctx, session, ShapeScan, relation, literal)
}

// JoinCount counts join view rows whose stop_id equals literal. Only the first
// row is pulled, so Elapsed is time-to-first-result.
func (r *Runner) JoinCount(ctx context.Context, session query.Session, view Registration, literal string) (Outcome, error) {
	if view.Kind != KindJoinView {
		return Outcome{}, &QueryError{Relation: view.Name(), Kind: FailureInvalidState, Err: fmt.Errorf("join count needs a join view, got %s: %w", view.Kind, ErrInvalidState)}
	}
	return r.run(ctx, session, ShapeJoin, view, literal)
}

func (r *Runner) run(ctx context.Context, session query.Session, shape Shape, relation Registration, literal string) (Outcome, error) {
	reporter := reporterOrNop(r.Reporter)
	logger := loggerOrDiscard(r.Logger)
	now := r.now
	if now == nil {
		now = time.Now
	}

	sqlText := CountSQL(relation.Name(), literal)
	reporter.Query(sqlText)

	start := now()
	stmt, err := session.Prepare(ctx, sqlText)
	if err != nil {
		return Outcome{}, &QueryError{Relation: relation.Name(), SQL: sqlText, Kind: FailurePrepare, Err: err}
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.Rows(ctx)
	if err != nil {
		return Outcome{}, &QueryError{Relation: relation.Name(), SQL: sqlText, Kind: FailureExecute, Err: err}
	}
	defer func() { _ = rows.Close() }()
	if shape == ShapeJoin {
		reporter.Prepared()
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Outcome{}, &QueryError{Relation: relation.Name(), SQL: sqlText, Kind: FailureExecute, Err: err}
		}
		return Outcome{}, &QueryError{Relation: relation.Name(), SQL: sqlText, Kind: FailureNoRows, Err: ErrNoRows}
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return Outcome{}, &QueryError{Relation: relation.Name(), SQL: sqlText, Kind: FailureScan, Err: err}
	}
	if shape == ShapeScan {
		extra := 0
		for rows.Next() {
			extra++
		}
		if err := rows.Err(); err != nil {
			return Outcome{}, &QueryError{Relation: relation.Name(), SQL: sqlText, Kind: FailureExecute, Err: err}
		}
		if extra > 0 {
			logger.Warn("count query returned extra rows", slog.String("relation", relation.Name()), slog.Int("extra", extra))
		}
	}
	elapsed := now().Sub(start)

	outcome := Outcome{
		Shape:    shape,
		Strategy: relation.Strategy,
		Relation: relation.Name(),
		Literal:  literal,
		SQL:      sqlText,
		Count:    count,
		Elapsed:  elapsed,
	}
	reporter.Outcome(outcome)
	observability.ObserveQuery(string(shape), string(relation.Strategy), count, elapsed)
	logger.Info("query completed",
		slog.String("shape", string(shape)),
		slog.String("strategy", string(relation.Strategy)),
		slog.String("relation", relation.Name()),
		slog.String("literal", literal),
		slog.Int64("count", count),
		slog.Duration("elapsed", elapsed),
	)
	return outcome, nil
}

// CountSQL is the count template shared by both query shapes.
func CountSQL(relation, literal string) string {
	return fmt.Sprintf("SELECT count(*) FROM %s WHERE stop_id = %s;", quoteIdent(relation), quoteLiteral(literal))
}
