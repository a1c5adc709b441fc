package harness

import (
	"errors"
	"fmt"

	"github.com/duckmesh/vtbench/internal/dataset"
)

var (
	ErrRelationExists  = errors.New("relation already registered")
	ErrFileNotFound    = errors.New("file not found")
	ErrMalformedHeader = dataset.ErrMalformedHeader
	ErrInvalidState    = errors.New("invalid relation state")
	ErrNoRows          = errors.New("query produced no rows")
)

type Phase string

const (
	PhaseLoad        Phase = "load"
	PhaseMaterialize Phase = "materialize"
	PhaseQuery       Phase = "query"
)

// FailureKind classifies a LoadError or QueryError without unpacking its cause.
type FailureKind string

const (
	FailureFileNotFound    FailureKind = "file_not_found"
	FailureMalformedHeader FailureKind = "malformed_header"
	FailureNamingConflict  FailureKind = "naming_conflict"
	FailureEngine          FailureKind = "engine"
	FailureInvalidState    FailureKind = "invalid_state"

	FailurePrepare FailureKind = "prepare"
	FailureExecute FailureKind = "execute"
	FailureNoRows  FailureKind = "no_rows"
	FailureScan    FailureKind = "scan"
)

// LoadError is fatal for a run: a source could not be registered, a name was
// already taken, or a materialized copy failed.
type LoadError struct {
	Phase    Phase
	Relation string
	Path     string
	Kind     FailureKind
	Err      error
}

func (e *LoadError) Error() string {
	target := e.Relation
	if e.Path != "" {
		target = fmt.Sprintf("%s (%s)", e.Relation, e.Path)
	}
	if target == "" {
		return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Phase, target, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// QueryError reports a failed preparation or a count query that produced no row.
type QueryError struct {
	Relation string
	SQL      string
	Kind     FailureKind
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", PhaseQuery, e.Relation, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// loadFailure maps a sentinel in err's chain to its kind, or returns fallback.
func loadFailure(err error, fallback FailureKind) FailureKind {
	switch {
	case errors.Is(err, ErrRelationExists):
		return FailureNamingConflict
	case errors.Is(err, ErrMalformedHeader):
		return FailureMalformedHeader
	case errors.Is(err, ErrFileNotFound):
		return FailureFileNotFound
	case errors.Is(err, ErrInvalidState):
		return FailureInvalidState
	default:
		return fallback
	}
}

// KindOf reports the failure kind of a harness error.
func KindOf(err error) (FailureKind, bool) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Kind, true
	}
	var queryErr *QueryError
	if errors.As(err, &queryErr) {
		return queryErr.Kind, true
	}
	return "", false
}

// PhaseOf reports which phase a harness error belongs to.
func PhaseOf(err error) (Phase, bool) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Phase, true
	}
	var queryErr *QueryError
	if errors.As(err, &queryErr) {
		return PhaseQuery, true
	}
	return "", false
}
