package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/duckmesh/vtbench/internal/dataset"
	"github.com/duckmesh/vtbench/internal/query"
)

// Source binds a base relation name to an input file with a header row.
type Source struct {
	Base string
	Path string
}

// Loader registers the two input files as streaming relations through the
// session's relation provider and defines the join view over them.
type Loader struct {
	Catalog  *Catalog
	Reporter Reporter
	Logger   *slog.Logger
	JoinBase string
}

func (l *Loader) Load(ctx context.Context, session query.Session, sources []Source, strategy Strategy) (LoadedSet, error) {
	if strategy != StrategyVirtual {
		return LoadedSet{}, &LoadError{Phase: PhaseLoad, Kind: FailureInvalidState, Err: fmt.Errorf("files load as %q relations only, got %q: %w", StrategyVirtual, strategy, ErrInvalidState)}
	}
	if len(sources) != 2 {
		return LoadedSet{}, &LoadError{Phase: PhaseLoad, Kind: FailureInvalidState, Err: fmt.Errorf("exactly two sources are required, got %d", len(sources))}
	}
	catalog := l.Catalog
	reporter := reporterOrNop(l.Reporter)
	logger := loggerOrDiscard(l.Logger)

	provider, err := session.Provider()
	if err != nil {
		return LoadedSet{}, &LoadError{Phase: PhaseLoad, Kind: FailureInvalidState, Err: err}
	}

	set := LoadedSet{Strategy: strategy}
	headers := make([][]string, 0, len(sources))
	batch := map[string]struct{}{}
	for _, source := range sources {
		reg := Registration{Base: source.Base, Strategy: strategy, Kind: KindSource, Path: source.Path, Header: true}
		if err := catalog.ensureFree(reg.Name()); err != nil {
			return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: reg.Name(), Path: reg.Path, Kind: FailureNamingConflict, Err: err}
		}
		if _, dup := batch[reg.Name()]; dup {
			return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: reg.Name(), Path: reg.Path, Kind: FailureNamingConflict, Err: fmt.Errorf("%q: %w", reg.Name(), ErrRelationExists)}
		}
		batch[reg.Name()] = struct{}{}

		header, err := readSourceHeader(reg.Path)
		if err != nil {
			return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: reg.Name(), Path: reg.Path, Kind: loadFailure(err, FailureFileNotFound), Err: err}
		}
		if !containsColumn(header, JoinKey) {
			return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: reg.Name(), Path: reg.Path, Kind: FailureMalformedHeader, Err: fmt.Errorf("join key %q not in header: %w", JoinKey, ErrMalformedHeader)}
		}
		headers = append(headers, header)
		set.Sources = append(set.Sources, reg)
	}

	view := Registration{Base: joinBaseOrDefault(l.JoinBase), Strategy: strategy, Kind: KindJoinView}
	if err := catalog.ensureFree(view.Name()); err != nil {
		return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: view.Name(), Kind: FailureNamingConflict, Err: err}
	}
	if missing := dataset.MissingColumns(RequiredColumns, headers...); len(missing) > 0 {
		return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: view.Name(), Kind: FailureMalformedHeader, Err: fmt.Errorf("sources lack columns %v: %w", missing, ErrMalformedHeader)}
	}
	set.Projection, err = planProjection(headers)
	if err != nil {
		return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: view.Name(), Kind: FailureMalformedHeader, Err: err}
	}

	for _, reg := range set.Sources {
		ddl, err := provider.DeclareStreaming(reg.Name(), reg.Path, reg.Header)
		if err != nil {
			return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: reg.Name(), Path: reg.Path, Kind: FailureEngine, Err: err}
		}
		reporter.Statement(ddl)
		if err := session.Exec(ctx, ddl); err != nil {
			return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: reg.Name(), Path: reg.Path, Kind: FailureEngine, Err: err}
		}
		if err := catalog.add(reg); err != nil {
			return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: reg.Name(), Path: reg.Path, Kind: FailureNamingConflict, Err: err}
		}
		logger.Info("relation registered",
			slog.String("relation", reg.Name()),
			slog.String("strategy", string(reg.Strategy)),
			slog.String("provider", provider.Name()),
			slog.String("path", reg.Path),
		)
	}

	set.Join = view
	if err := defineJoin(ctx, session, catalog, reporter, logger, view, set); err != nil {
		return LoadedSet{}, &LoadError{Phase: PhaseLoad, Relation: view.Name(), Kind: loadFailure(err, FailureEngine), Err: err}
	}
	return set, nil
}

func readSourceHeader(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, ErrFileNotFound)
	}
	return dataset.ReadHeader(path)
}

func joinBaseOrDefault(base string) string {
	if base == "" {
		return DefaultJoinBase
	}
	return base
}
