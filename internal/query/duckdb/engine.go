package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/vtbench/internal/query"
)

type Config struct {
	Threads     int
	MemoryLimit string
}

// Session is an in-memory DuckDB database pinned to a single connection, so
// every relation created through it stays visible to later statements.
type Session struct {
	db       *sql.DB
	provider query.RelationProvider
}

func Open(ctx context.Context, cfg Config) (*Session, error) {
	db, err := sql.Open("duckdb", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return NewSession(db), nil
}

func NewSession(db *sql.DB) *Session {
	return &Session{db: db}
}

func (s *Session) Exec(ctx context.Context, statement string) error {
	if strings.TrimSpace(statement) == "" {
		return fmt.Errorf("statement is required")
	}
	if _, err := s.db.ExecContext(ctx, statement); err != nil {
		return &query.EngineError{Op: "exec", SQL: statement, Err: err}
	}
	return nil
}

func (s *Session) Prepare(ctx context.Context, sqlText string) (query.Statement, error) {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return nil, fmt.Errorf("sql is required")
	}
	stmt, err := s.db.PrepareContext(ctx, trimmed)
	if err != nil {
		return nil, &query.EngineError{Op: "prepare", SQL: trimmed, Err: err}
	}
	return &statement{stmt: stmt, sqlText: trimmed}, nil
}

func (s *Session) RegisterProvider(provider query.RelationProvider) error {
	if provider == nil {
		return fmt.Errorf("relation provider is required")
	}
	if s.provider != nil {
		return fmt.Errorf("register %q: %w", provider.Name(), query.ErrProviderRegistered)
	}
	s.provider = provider
	return nil
}

func (s *Session) Provider() (query.RelationProvider, error) {
	if s.provider == nil {
		return nil, query.ErrNoProvider
	}
	return s.provider, nil
}

func (s *Session) Close() error {
	return s.db.Close()
}

type statement struct {
	stmt    *sql.Stmt
	sqlText string
}

func (s *statement) Rows(ctx context.Context) (query.Rows, error) {
	rows, err := s.stmt.QueryContext(ctx)
	if err != nil {
		return nil, &query.EngineError{Op: "query", SQL: s.sqlText, Err: err}
	}
	return &resultRows{rows: rows, sqlText: s.sqlText}, nil
}

func (s *statement) Close() error {
	return s.stmt.Close()
}

type resultRows struct {
	rows    *sql.Rows
	sqlText string
}

func (r *resultRows) Next() bool {
	return r.rows.Next()
}

func (r *resultRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return &query.EngineError{Op: "scan", SQL: r.sqlText, Err: err}
	}
	return nil
}

func (r *resultRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return &query.EngineError{Op: "iterate", SQL: r.sqlText, Err: err}
	}
	return nil
}

func (r *resultRows) Close() error {
	return r.rows.Close()
}

func buildDSN(cfg Config) string {
	values := url.Values{}
	if cfg.Threads > 0 {
		values.Set("threads", strconv.Itoa(cfg.Threads))
	}
	if strings.TrimSpace(cfg.MemoryLimit) != "" {
		values.Set("memory_limit", strings.TrimSpace(cfg.MemoryLimit))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
