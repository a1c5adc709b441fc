package query

import (
	"context"
	"errors"
	"fmt"
)

var ErrProviderRegistered = errors.New("relation provider already registered")

var ErrNoProvider = errors.New("no relation provider registered")

// Session is an open handle to a query-capable store. All relations registered
// through it live until Close.
type Session interface {
	Exec(ctx context.Context, statement string) error
	Prepare(ctx context.Context, sqlText string) (Statement, error)
	RegisterProvider(provider RelationProvider) error
	Provider() (RelationProvider, error)
	Close() error
}

// Statement is a prepared query. Rows starts execution; nothing is produced
// before the first call to Rows.Next.
type Statement interface {
	Rows(ctx context.Context) (Rows, error)
	Close() error
}

// Rows is a lazy, single-pass, non-restartable sequence of result rows. Next may
// block while the engine produces the row.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// RelationProvider turns an external delimited-text file into DDL that makes it
// addressable as a relation whose rows are parsed on every access.
type RelationProvider interface {
	Name() string
	DeclareStreaming(relation, path string, header bool) (string, error)
}

// EngineError is any failure surfaced by the underlying engine.
type EngineError struct {
	Op  string
	SQL string
	Err error
}

func (e *EngineError) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine %s %q: %v", e.Op, e.SQL, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
