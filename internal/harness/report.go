package harness

import (
	"fmt"
	"io"
	"log/slog"
)

// Reporter narrates the run. Every timed operation is reported right after it
// completes, next to the statement that produced it.
type Reporter interface {
	Narrate(line string)
	Statement(ddl string)
	Query(sqlText string)
	Prepared()
	Outcome(outcome Outcome)
	Materialized(load Materialization)
}

// ConsoleReporter writes human-readable lines with whole-second timings.
type ConsoleReporter struct {
	W io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleReporter{W: w}
}

func (c *ConsoleReporter) Narrate(line string) {
	_, _ = fmt.Fprintln(c.W, line)
}

func (c *ConsoleReporter) Statement(ddl string) {
	_, _ = fmt.Fprintf(c.W, "%s\n\n", ddl)
}

func (c *ConsoleReporter) Query(sqlText string) {
	_, _ = fmt.Fprintln(c.W, sqlText)
}

func (c *ConsoleReporter) Prepared() {
	_, _ = fmt.Fprintln(c.W, "Prepared statement, called query() ...")
}

func (c *ConsoleReporter) Outcome(outcome Outcome) {
	_, _ = fmt.Fprintf(c.W, "%d\n", outcome.Count)
	_, _ = fmt.Fprintf(c.W, "Completed in %d seconds.\n\n", int64(outcome.Elapsed.Seconds()))
}

func (c *ConsoleReporter) Materialized(load Materialization) {
	_, _ = fmt.Fprintf(c.W, "Loaded %s in %d seconds.\n\n", load.Base, int64(load.Elapsed.Seconds()))
}

type nopReporter struct{}

func (nopReporter) Narrate(string)               {}
func (nopReporter) Statement(string)             {}
func (nopReporter) Query(string)                 {}
func (nopReporter) Prepared()                    {}
func (nopReporter) Outcome(Outcome)              {}
func (nopReporter) Materialized(Materialization) {}

func reporterOrNop(r Reporter) Reporter {
	if r == nil {
		return nopReporter{}
	}
	return r
}

func loggerOrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
