package duckdb

import (
	"fmt"
	"strings"
)

// emptyFieldNull is the null marker handed to read_csv. read_csv treats empty
// fields as NULL by default; pointing nullstr elsewhere keeps them as ''.
const emptyFieldNull = "__vtbench_null__"

// CSVProvider exposes a delimited-text file as a view over read_csv. DuckDB
// re-reads and re-parses the file every time the view is scanned, all
// columns are typed as text and an empty field reads as the empty string.
type CSVProvider struct{}

func NewCSVProvider() *CSVProvider {
	return &CSVProvider{}
}

func (p *CSVProvider) Name() string {
	return "csv"
}

func (p *CSVProvider) DeclareStreaming(relation, path string, header bool) (string, error) {
	if strings.TrimSpace(relation) == "" {
		return "", fmt.Errorf("relation name is required")
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("file path is required for relation %q", relation)
	}
	return fmt.Sprintf(
		`CREATE VIEW %s AS SELECT * FROM read_csv(%s, header = %t, all_varchar = true, nullstr = %s)`,
		quoteIdent(relation),
		quoteString(path),
		header,
		quoteString(emptyFieldNull),
	), nil
}
