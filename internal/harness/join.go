package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckmesh/vtbench/internal/query"
)

const JoinKey = "trip_id"

// JoinProjection is the attribute set exposed by every join view.
var JoinProjection = []string{"stop_id", "stop_sequence", "direction_id", "route_id"}

// RequiredColumns must appear across the union of the two source headers.
var RequiredColumns = append([]string{JoinKey}, JoinProjection...)

// ProjectedColumn binds a projected attribute to the source that supplies it.
type ProjectedColumn struct {
	Column string
	Source int
}

// LoadedSet is the pair of sources and the join view defined over them for one
// strategy.
type LoadedSet struct {
	Strategy   Strategy
	Sources    []Registration
	Join       Registration
	Projection []ProjectedColumn
}

func (s LoadedSet) Source(base string) (Registration, bool) {
	for _, reg := range s.Sources {
		if reg.Base == base {
			return reg, true
		}
	}
	return Registration{}, false
}

func (s LoadedSet) Names() []string {
	names := make([]string, 0, len(s.Sources)+1)
	for _, reg := range s.Sources {
		names = append(names, reg.Name())
	}
	if s.Join.Base != "" {
		names = append(names, s.Join.Name())
	}
	return names
}

// planProjection takes each projected column from the first source whose header
// names it.
func planProjection(headers [][]string) ([]ProjectedColumn, error) {
	projection := make([]ProjectedColumn, 0, len(JoinProjection))
	for _, column := range JoinProjection {
		found := -1
		for i, header := range headers {
			if containsColumn(header, column) {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("no source supplies column %q: %w", column, ErrMalformedHeader)
		}
		projection = append(projection, ProjectedColumn{Column: column, Source: found})
	}
	return projection, nil
}

func joinDDL(view string, sources []string, projection []ProjectedColumn) string {
	selected := make([]string, 0, len(projection))
	for _, column := range projection {
		selected = append(selected, quoteIdent(sources[column.Source])+"."+column.Column)
	}
	left, right := quoteIdent(sources[0]), quoteIdent(sources[1])
	return fmt.Sprintf("CREATE VIEW %s AS\nSELECT %s\nFROM %s\nINNER JOIN %s ON %s.%s = %s.%s",
		quoteIdent(view),
		strings.Join(selected, ", "),
		left,
		right,
		left, JoinKey,
		right, JoinKey,
	)
}

// defineJoin creates the join view of set over its two sources.
func defineJoin(ctx context.Context, session query.Session, catalog *Catalog, reporter Reporter, logger *slog.Logger, view Registration, set LoadedSet) error {
	if err := catalog.ensureFree(view.Name()); err != nil {
		return err
	}
	sourceNames := make([]string, 0, len(set.Sources))
	for _, reg := range set.Sources {
		sourceNames = append(sourceNames, reg.Name())
	}
	ddl := joinDDL(view.Name(), sourceNames, set.Projection)
	reporter.Statement(ddl)
	if err := session.Exec(ctx, ddl); err != nil {
		return err
	}
	if err := catalog.add(view); err != nil {
		return err
	}
	logger.Debug("join view defined",
		slog.String("view", view.Name()),
		slog.String("strategy", string(view.Strategy)),
		slog.String("left", sourceNames[0]),
		slog.String("right", sourceNames[1]),
	)
	return nil
}

func containsColumn(header []string, column string) bool {
	for _, candidate := range header {
		if candidate == column {
			return true
		}
	}
	return false
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
