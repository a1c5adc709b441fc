package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duckmesh/vtbench/internal/observability"
	"github.com/duckmesh/vtbench/internal/query"
)

const (
	DefaultStopTimesBase = "StopTimes"
	DefaultTripsBase     = "Trips"
	DefaultJoinBase      = "TripSeqs"
	DefaultScanLiteral   = "893"
)

// DefaultJoinLiterals are a busy stop and a quiet one.
var DefaultJoinLiterals = []string{"893", "313178"}

type Step struct {
	Shape    Shape
	Literal  string
	Strategy Strategy
	// Source is the base relation a scan step counts; empty means the first source.
	Source string
	// Note is narrated before the query runs.
	Note string
}

type Plan struct {
	Sources  []Source
	JoinBase string
	Steps    []Step
}

// NewPlan builds, for every strategy in order, one scan step followed by one
// join step per literal. An empty scanLiteral skips the scan step.
func NewPlan(stopTimesPath, tripsPath, scanLiteral string, joinLiterals []string, strategies []Strategy) Plan {
	plan := Plan{
		Sources: []Source{
			{Base: DefaultStopTimesBase, Path: stopTimesPath},
			{Base: DefaultTripsBase, Path: tripsPath},
		},
		JoinBase: DefaultJoinBase,
	}
	for _, strategy := range strategies {
		var shapes []Step
		if scanLiteral != "" {
			shapes = append(shapes, Step{Shape: ShapeScan, Literal: scanLiteral, Strategy: strategy})
		}
		for _, literal := range joinLiterals {
			shapes = append(shapes, Step{Shape: ShapeJoin, Literal: literal, Strategy: strategy})
		}
		plan.Steps = append(plan.Steps, withNotes(shapes)...)
	}
	return plan
}

// withNotes numbers the steps of one strategy from 1 and attaches what each
// query is expected to show.
func withNotes(steps []Step) []Step {
	firstJoin := 0
	for i := range steps {
		n := i + 1
		step := &steps[i]
		switch {
		case step.Strategy == StrategyMemory && step.Shape == ShapeJoin && firstJoin == 0:
			step.Note = fmt.Sprintf("Query #%d should now also be fast", n)
		case step.Strategy == StrategyMemory:
			step.Note = fmt.Sprintf("Query #%d should still be fast", n)
		case step.Shape == ShapeScan:
			step.Note = fmt.Sprintf("This %s query should complete quickly", ordinal(n))
		case firstJoin == 0:
			step.Note = fmt.Sprintf("This %s query may be slow with virtual tables, even though the same join is quick once the tables are in memory. Expect this query to take several minutes on a full-size stop_times file...", ordinal(n))
		default:
			step.Note = fmt.Sprintf("This %s query is like #%d but should be quick, with many fewer rows involved.", ordinal(n), firstJoin)
		}
		if step.Shape == ShapeJoin && firstJoin == 0 {
			firstJoin = n
		}
	}
	return steps
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "first"
	case 2:
		return "second"
	case 3:
		return "third"
	default:
		return fmt.Sprintf("#%d", n)
	}
}

func DefaultPlan(stopTimesPath, tripsPath string) Plan {
	return NewPlan(stopTimesPath, tripsPath, DefaultScanLiteral, DefaultJoinLiterals, []Strategy{StrategyVirtual, StrategyMemory})
}

func (p Plan) Validate() error {
	if len(p.Sources) != 2 {
		return fmt.Errorf("plan needs exactly two sources, got %d", len(p.Sources))
	}
	for _, source := range p.Sources {
		if strings.TrimSpace(source.Base) == "" {
			return fmt.Errorf("source base name is required")
		}
		if strings.TrimSpace(source.Path) == "" {
			return fmt.Errorf("path for source %q is required", source.Base)
		}
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	for i, step := range p.Steps {
		if !step.Strategy.valid() {
			return fmt.Errorf("step %d: unknown strategy %q", i+1, step.Strategy)
		}
		if step.Shape != ShapeScan && step.Shape != ShapeJoin {
			return fmt.Errorf("step %d: unknown shape %q", i+1, step.Shape)
		}
	}
	return nil
}

func (p Plan) needs(strategy Strategy) bool {
	return p.count(strategy) > 0
}

func (p Plan) count(strategy Strategy) int {
	n := 0
	for _, step := range p.Steps {
		if step.Strategy == strategy {
			n++
		}
	}
	return n
}

// Report collects everything measured in one run. Materialization timings are
// kept apart from query timings.
type Report struct {
	RunID            string
	Streaming        LoadedSet
	Materialized     LoadedSet
	Materializations []Materialization
	Outcomes         []Outcome
	Elapsed          time.Duration
}

type Options struct {
	RunID    string
	Reporter Reporter
	Logger   *slog.Logger
}

// Harness runs plans against one explicitly owned session.
type Harness struct {
	session  query.Session
	catalog  *Catalog
	loader   *Loader
	runner   *Runner
	switcher *Switch
	reporter Reporter
	logger   *slog.Logger
	runID    string
}

func New(session query.Session, opts Options) *Harness {
	catalog := NewCatalog()
	reporter := reporterOrNop(opts.Reporter)
	logger := loggerOrDiscard(opts.Logger)
	if opts.RunID != "" {
		logger = logger.With(slog.String("run_id", opts.RunID))
	}
	return &Harness{
		session:  session,
		catalog:  catalog,
		loader:   &Loader{Catalog: catalog, Reporter: reporter, Logger: logger},
		runner:   &Runner{Reporter: reporter, Logger: logger},
		switcher: &Switch{Catalog: catalog, Reporter: reporter, Logger: logger},
		reporter: reporter,
		logger:   logger,
		runID:    opts.RunID,
	}
}

func (h *Harness) Catalog() *Catalog {
	return h.catalog
}

// Run loads the streaming set, runs its steps, switches strategy when any step
// asks for memory, then runs the remaining steps. The first failure stops the
// run; the report holds whatever was measured before it.
func (h *Harness) Run(ctx context.Context, plan Plan) (report Report, err error) {
	start := time.Now()
	report.RunID = h.runID
	defer func() {
		report.Elapsed = time.Since(start)
		status := "completed"
		if err != nil {
			status = "failed"
		}
		observability.ObserveRun(status)
	}()

	if err := plan.Validate(); err != nil {
		return report, err
	}
	h.loader.JoinBase = joinBaseOrDefault(plan.JoinBase)

	h.narratePreamble(plan)
	streaming, err := h.loader.Load(ctx, h.session, plan.Sources, StrategyVirtual)
	if err != nil {
		return report, err
	}
	report.Streaming = streaming
	if err := h.runSteps(ctx, plan, streaming, &report); err != nil {
		return report, err
	}

	if !plan.needs(StrategyMemory) {
		return report, nil
	}
	h.reporter.Narrate("\nNow we'll load the tables into memory and create another view...")
	materialized, loads, err := h.switcher.Materialize(ctx, h.session, streaming)
	report.Materializations = loads
	if err != nil {
		return report, err
	}
	report.Materialized = materialized
	if err := h.runSteps(ctx, plan, materialized, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (h *Harness) narratePreamble(plan Plan) {
	h.reporter.Narrate("This run should demonstrate a performance issue with CSV virtual tables: multi-table queries must have the tables in memory for performance.")
	h.reporter.Narrate(fmt.Sprintf("Reading %s and %s.", plan.Sources[0].Path, plan.Sources[1].Path))
	queries := "queries"
	if plan.count(StrategyVirtual) == 1 {
		queries = "query"
	}
	h.reporter.Narrate(fmt.Sprintf("First we're going to do %d %s with virtual tables (i.e. on-disk).", plan.count(StrategyVirtual), queries))
	if plan.needs(StrategyMemory) {
		h.reporter.Narrate("Then we're going to load the tables into memory properly and repeat.")
	}
	h.reporter.Narrate("")
}

func (h *Harness) runSteps(ctx context.Context, plan Plan, set LoadedSet, report *Report) error {
	for _, step := range plan.Steps {
		if step.Strategy != set.Strategy {
			continue
		}
		if step.Note != "" {
			h.reporter.Narrate(step.Note)
		}
		var (
			outcome Outcome
			err     error
		)
		switch step.Shape {
		case ShapeScan:
			base := step.Source
			if base == "" {
				base = plan.Sources[0].Base
			}
			relation, ok := set.Source(base)
			if !ok {
				return &QueryError{Relation: base + set.Strategy.Suffix(), Kind: FailureInvalidState, Err: fmt.Errorf("source %q is not registered: %w", base, ErrInvalidState)}
			}
			outcome, err = h.runner.Count(ctx, h.session, relation, step.Literal)
		case ShapeJoin:
			outcome, err = h.runner.JoinCount(ctx, h.session, set.Join, step.Literal)
		}
		if err != nil {
			return err
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return nil
}
