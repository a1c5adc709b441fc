package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/duckmesh/vtbench/internal/observability"
	"github.com/duckmesh/vtbench/internal/query"
)

// Materialization reports the copy of one streaming relation into session
// storage. Elapsed covers only the copy; Rows is counted afterwards.
type Materialization struct {
	Relation string
	Source   string
	Base     string
	Rows     int64
	Elapsed  time.Duration
}

// Switch copies every streaming source of a set into an in-memory table and
// defines a second join view over the copies.
type Switch struct {
	Catalog  *Catalog
	Reporter Reporter
	Logger   *slog.Logger

	now func() time.Time
}

func (s *Switch) Materialize(ctx context.Context, session query.Session, streaming LoadedSet) (LoadedSet, []Materialization, error) {
	if streaming.Strategy != StrategyVirtual {
		return LoadedSet{}, nil, &LoadError{Phase: PhaseMaterialize, Kind: FailureInvalidState, Err: fmt.Errorf("source set is %q: %w", streaming.Strategy, ErrInvalidState)}
	}
	catalog := s.Catalog
	reporter := reporterOrNop(s.Reporter)
	logger := loggerOrDiscard(s.Logger)
	now := s.now
	if now == nil {
		now = time.Now
	}

	reporter.Narrate("Loading the tables into memory...")
	set := LoadedSet{Strategy: StrategyMemory, Projection: streaming.Projection}
	var loads []Materialization
	for _, source := range streaming.Sources {
		target := Registration{Base: source.Base, Strategy: StrategyMemory, Kind: KindSource, From: source.Name()}
		if state := catalog.State(source.Base); state != StateStreaming {
			if state == StateMaterialized {
				return LoadedSet{}, loads, &LoadError{Phase: PhaseMaterialize, Relation: target.Name(), Kind: FailureNamingConflict, Err: fmt.Errorf("%q: %w", target.Name(), ErrRelationExists)}
			}
			return LoadedSet{}, loads, &LoadError{Phase: PhaseMaterialize, Relation: target.Name(), Kind: FailureInvalidState, Err: fmt.Errorf("%s is %s: %w", source.Base, state, ErrInvalidState)}
		}
		if err := catalog.ensureFree(target.Name()); err != nil {
			return LoadedSet{}, loads, &LoadError{Phase: PhaseMaterialize, Relation: target.Name(), Kind: FailureNamingConflict, Err: err}
		}

		ddl := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s;", quoteIdent(target.Name()), quoteIdent(source.Name()))
		reporter.Statement(ddl)

		start := now()
		if err := session.Exec(ctx, ddl); err != nil {
			return LoadedSet{}, loads, &LoadError{Phase: PhaseMaterialize, Relation: target.Name(), Path: source.Path, Kind: FailureEngine, Err: err}
		}
		elapsed := now().Sub(start)
		if err := catalog.add(target); err != nil {
			return LoadedSet{}, loads, &LoadError{Phase: PhaseMaterialize, Relation: target.Name(), Kind: FailureNamingConflict, Err: err}
		}

		rows, err := countAll(ctx, session, target.Name())
		if err != nil {
			return LoadedSet{}, loads, &LoadError{Phase: PhaseMaterialize, Relation: target.Name(), Kind: loadFailure(err, FailureEngine), Err: err}
		}
		load := Materialization{Relation: target.Name(), Source: source.Name(), Base: source.Base, Rows: rows, Elapsed: elapsed}
		loads = append(loads, load)
		reporter.Materialized(load)
		observability.ObserveMaterialize(source.Base, rows, elapsed)
		logger.Info("relation materialized",
			slog.String("relation", target.Name()),
			slog.String("source", source.Name()),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
		set.Sources = append(set.Sources, target)
	}

	view := Registration{Base: streaming.Join.Base, Strategy: StrategyMemory, Kind: KindJoinView}
	if view.Base == "" {
		view.Base = DefaultJoinBase
	}
	set.Join = view
	if err := defineJoin(ctx, session, catalog, reporter, logger, view, set); err != nil {
		return LoadedSet{}, loads, &LoadError{Phase: PhaseMaterialize, Relation: view.Name(), Kind: loadFailure(err, FailureEngine), Err: err}
	}
	return set, loads, nil
}

func countAll(ctx context.Context, session query.Session, relation string) (int64, error) {
	stmt, err := session.Prepare(ctx, fmt.Sprintf("SELECT count(*) FROM %s", quoteIdent(relation)))
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.Rows(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, ErrNoRows
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return count, rows.Err()
}
